package procedures

import (
	"fmt"
	"math"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/stratadb/strata/pkg/dataset"
	"github.com/stratadb/strata/pkg/datasets"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/functions"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/sql"
)

const TYPE_TSNE_TRAIN = "tsne.train"

func init() {
	procedure.MustRegisterKind[TsneTrainConfig](TYPE_TSNE_TRAIN, "train a low dimensional embedding of a dataset", newTsneTrain)
}

// TsneTrainConfig describes an embedding training. The training rows
// are selected by a query, the learned projection is applied to them
// and written as coordinate dataset, and optionally stored as model
// artifact backing an embedding function.
type TsneTrainConfig struct {
	procedure.CommonConfig `json:",inline"`

	TrainingData sql.InputQuery     `json:"trainingData"`
	Output       runtime.PolyConfig `json:"output,omitempty"`
	ModelFileUrl string             `json:"modelFileUrl,omitempty"`
	FunctionName string             `json:"functionName,omitempty"`

	NumInputDimensions  int     `json:"numInputDimensions,omitempty"`
	NumOutputDimensions int     `json:"numOutputDimensions,omitempty"`
	Iterations          int     `json:"iterations,omitempty"`
	Perplexity          float64 `json:"perplexity,omitempty"`
}

func (c *TsneTrainConfig) Default() {
	if c.Output.Kind == "" {
		c.Output.Kind = datasets.TYPE_TABULAR
	}
	if c.NumOutputDimensions == 0 {
		c.NumOutputDimensions = 2
	}
	if c.Iterations == 0 {
		c.Iterations = 20
	}
	if c.Perplexity == 0 {
		c.Perplexity = 30
	}
}

func (c *TsneTrainConfig) Validate() error {
	if c.TrainingData.IsZero() {
		return fmt.Errorf("a training query must be given")
	}
	if err := procedure.ValidateQuery(c.TrainingData, "trainingData", procedure.NoGroupByHaving, procedure.PlainColumnSelect); err != nil {
		return err
	}
	if c.NumInputDimensions < 0 {
		return fmt.Errorf("numInputDimensions must not be negative")
	}
	if c.NumOutputDimensions < 1 {
		return fmt.Errorf("numOutputDimensions must be positive")
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be positive")
	}
	if c.Perplexity < 0 {
		return fmt.Errorf("perplexity must not be negative")
	}
	if c.FunctionName != "" && c.ModelFileUrl == "" {
		return fmt.Errorf("a function name requires a model file")
	}
	return nil
}

type tsneTrain struct {
	procedure.Common
	cfg *TsneTrainConfig
}

var _ procedure.Procedure = (*tsneTrain)(nil)

func newTsneTrain(dir entity.Directory, config runtime.PolyConfig, cfg *TsneTrainConfig, _ runtime.ProgressFunc) (procedure.Procedure, error) {
	return &tsneTrain{
		Common: procedure.NewCommon(dir, config),
		cfg:    cfg,
	}, nil
}

func (p *tsneTrain) GetStatus() runtime.Value {
	return runtime.MustValue(map[string]any{
		"trainingData":        p.cfg.TrainingData.Surface(),
		"numOutputDimensions": p.cfg.NumOutputDimensions,
	})
}

func (p *tsneTrain) Run(run procedure.RunConfig, progress runtime.ProgressFunc) (procedure.RunOutput, error) {
	cfg, err := procedure.Overlay[TsneTrainConfig](p, run)
	if err != nil {
		return procedure.RunOutput{}, err
	}
	eng, err := engineOf(p)
	if err != nil {
		return procedure.RunOutput{}, err
	}

	rows, err := dataset.Query(eng, cfg.TrainingData)
	if err != nil {
		return procedure.RunOutput{}, err
	}
	if len(rows) == 0 {
		return procedure.RunOutput{}, fmt.Errorf("training data is empty")
	}

	cols := numericColumns(rows)
	if cfg.NumInputDimensions > 0 && cfg.NumInputDimensions < len(cols) {
		cols = cols[:cfg.NumInputDimensions]
	}
	if len(cols) == 0 {
		return procedure.RunOutput{}, fmt.Errorf("training data has no numeric columns")
	}
	if cfg.NumOutputDimensions > len(cols) {
		return procedure.RunOutput{}, fmt.Errorf("cannot embed %d columns into %d dimensions", len(cols), cfg.NumOutputDimensions)
	}

	matrix, mean := centeredMatrix(rows, cols)
	directions, err := principalDirections(matrix, cfg.NumOutputDimensions, cfg.Iterations, progress)
	if err != nil {
		return procedure.RunOutput{}, err
	}

	model := &functions.EmbedModel{
		InputColumns: cols,
		Mean:         mean,
		Projection:   make([][]float64, len(cols)),
	}
	for i := range cols {
		row := make([]float64, len(directions))
		for j, dir := range directions {
			row[j] = dir[i]
		}
		model.Projection[i] = row
	}

	out, err := eng.Construct(entity.DATASETS, cfg.Output, progress)
	if err != nil {
		return procedure.RunOutput{}, fmt.Errorf("cannot create output dataset: %w", err)
	}
	target := out.(dataset.Dataset)
	for i, r := range rows {
		embedded := model.Embed(rawVector(r.Cells, cols))
		cells := sql.Row{}
		for j, v := range embedded {
			cells[fmt.Sprintf("dim%d", j)] = v
		}
		if err := target.AppendRow(r.Name, cells); err != nil {
			return procedure.RunOutput{}, fmt.Errorf("row %d: %w", i, err)
		}
	}
	if err := target.Commit(); err != nil {
		return procedure.RunOutput{}, err
	}

	results := map[string]any{
		"rowCount":      len(rows),
		"columns":       cols,
		"outputDataset": target.GetName(),
	}
	if cfg.ModelFileUrl != "" {
		digest, err := functions.StoreModel(eng.Artifacts(), cfg.ModelFileUrl, model)
		if err != nil {
			return procedure.RunOutput{}, err
		}
		results["modelDigest"] = digest
	}
	if cfg.FunctionName != "" {
		_, err := eng.Construct(entity.FUNCTIONS, runtime.PolyConfig{
			Kind: functions.TYPE_EMBED_APPLY,
			ID:   cfg.FunctionName,
			Params: runtime.MustValue(map[string]any{
				"modelFileUrl": cfg.ModelFileUrl,
			}),
		}, progress)
		if err != nil {
			return procedure.RunOutput{}, fmt.Errorf("cannot create function %q: %w", cfg.FunctionName, err)
		}
		results["functionName"] = cfg.FunctionName
	}

	log.Info("embedded {{rows}} rows into {{dims}} dimensions", "rows", len(rows), "dims", cfg.NumOutputDimensions)
	return procedure.RunOutput{
		Results: runtime.MustValue(results),
		Details: runtime.MustValue(map[string]any{
			"columns": cols,
			"mean":    mean,
		}),
	}, nil
}

// numericColumns determines the sorted union of all column names
// carrying numbers in at least one row.
func numericColumns(rows []dataset.NamedRow) []string {
	found := sets.New[string]()
	for _, r := range rows {
		for k, v := range r.Cells {
			if _, ok := v.(float64); ok {
				found.Insert(k)
			}
		}
	}
	cols := found.UnsortedList()
	sort.Strings(cols)
	return cols
}

func rawVector(cells sql.Row, cols []string) []float64 {
	vec := make([]float64, len(cols))
	for i, c := range cols {
		if f, ok := cells[c].(float64); ok {
			vec[i] = f
		}
	}
	return vec
}

// centeredMatrix extracts the numeric training matrix and subtracts
// the per-column mean. Missing cells count as zero.
func centeredMatrix(rows []dataset.NamedRow, cols []string) ([][]float64, []float64) {
	matrix := make([][]float64, len(rows))
	mean := make([]float64, len(cols))
	for i, r := range rows {
		vec := rawVector(r.Cells, cols)
		matrix[i] = vec
		for j, v := range vec {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(rows))
	}
	for _, vec := range matrix {
		for j := range vec {
			vec[j] -= mean[j]
		}
	}
	return matrix, mean
}

// principalDirections computes k orthonormal directions of maximal
// variance by power iteration on the centered matrix. The start
// vectors are fixed, so the outcome is deterministic.
func principalDirections(matrix [][]float64, k, iterations int, progress runtime.ProgressFunc) ([][]float64, error) {
	d := len(matrix[0])
	directions := make([][]float64, 0, k)
	for dim := 0; dim < k; dim++ {
		v := make([]float64, d)
		for i := range v {
			v[i] = 1 / float64(i+dim+1)
		}
		normalize(v)
		for it := 1; it <= iterations; it++ {
			w := make([]float64, d)
			for _, row := range matrix {
				s := dot(row, v)
				for j := range w {
					w[j] += row[j] * s
				}
			}
			for _, prev := range directions {
				p := dot(w, prev)
				for j := range w {
					w[j] -= p * prev[j]
				}
			}
			if normalize(w) == 0 {
				break
			}
			v = w
			if !progress.Report(runtime.MustValue(map[string]any{"phase": "train", "dimension": dim, "iteration": it})) {
				return nil, fmt.Errorf("canceled in iteration %d of dimension %d", it, dim)
			}
		}
		directions = append(directions, v)
	}
	return directions, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(v []float64) float64 {
	n := math.Sqrt(dot(v, v))
	if n > 0 {
		for i := range v {
			v[i] /= n
		}
	}
	return n
}
