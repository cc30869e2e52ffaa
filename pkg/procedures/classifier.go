package procedures

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/stratadb/strata/pkg/dataset"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/sql"
	"github.com/stratadb/strata/pkg/utils"
)

const TYPE_CLASSIFIER_TRAIN = "classifier.train"

const FEATURE_PREFIX = "features."

func init() {
	procedure.MustRegisterKind[ClassifierTrainConfig](TYPE_CLASSIFIER_TRAIN, "train a centroid classifier from labeled rows", newClassifierTrain)
}

// ClassifierTrainConfig describes a classifier training. The training
// query must project a features row and a label column.
type ClassifierTrainConfig struct {
	procedure.CommonConfig `json:",inline"`

	TrainingData sql.InputQuery `json:"trainingData"`
	ModelFileUrl string         `json:"modelFileUrl"`
}

func (c *ClassifierTrainConfig) Validate() error {
	if c.TrainingData.IsZero() {
		return fmt.Errorf("a training query must be given")
	}
	if err := procedure.ValidateQuery(c.TrainingData, "trainingData", procedure.NoGroupByHaving, procedure.PlainColumnSelect, procedure.FeaturesLabelSelect); err != nil {
		return err
	}
	if c.ModelFileUrl == "" {
		return fmt.Errorf("a model file must be given")
	}
	return nil
}

// CentroidModel is the stored outcome of a classifier training, the
// per-label mean of all feature vectors.
type CentroidModel struct {
	Features  []string             `json:"features"`
	Labels    []string             `json:"labels"`
	Centroids map[string][]float64 `json:"centroids"`
	Counts    map[string]int       `json:"counts"`
}

type classifierTrain struct {
	procedure.Common
	cfg *ClassifierTrainConfig
}

var _ procedure.Procedure = (*classifierTrain)(nil)

func newClassifierTrain(dir entity.Directory, config runtime.PolyConfig, cfg *ClassifierTrainConfig, _ runtime.ProgressFunc) (procedure.Procedure, error) {
	return &classifierTrain{
		Common: procedure.NewCommon(dir, config),
		cfg:    cfg,
	}, nil
}

func (p *classifierTrain) GetStatus() runtime.Value {
	return runtime.MustValue(map[string]any{
		"trainingData": p.cfg.TrainingData.Surface(),
		"modelFileUrl": p.cfg.ModelFileUrl,
	})
}

func (p *classifierTrain) Run(run procedure.RunConfig, progress runtime.ProgressFunc) (procedure.RunOutput, error) {
	cfg, err := procedure.Overlay[ClassifierTrainConfig](p, run)
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

	names := sets.New[string]()
	for _, r := range rows {
		for k := range r.Cells {
			if strings.HasPrefix(k, FEATURE_PREFIX) {
				names.Insert(strings.TrimPrefix(k, FEATURE_PREFIX))
			}
		}
	}
	features := names.UnsortedList()
	sort.Strings(features)
	if len(features) == 0 {
		return procedure.RunOutput{}, fmt.Errorf("training data has no feature columns")
	}

	sums := map[string][]float64{}
	counts := map[string]int{}
	for _, r := range rows {
		l, ok := r.Cells["label"]
		if !ok || l == nil {
			return procedure.RunOutput{}, fmt.Errorf("row %q has no label", r.Name)
		}
		label := fmt.Sprintf("%v", l)
		sum := sums[label]
		if sum == nil {
			sum = make([]float64, len(features))
			sums[label] = sum
		}
		for i, name := range features {
			v := r.Cells[FEATURE_PREFIX+name]
			if v == nil {
				continue
			}
			f, ok := v.(float64)
			if !ok {
				return procedure.RunOutput{}, fmt.Errorf("feature %q of row %q is not numeric", name, r.Name)
			}
			sum[i] += f
		}
		counts[label]++
	}
	if !progress.Report(runtime.MustValue(map[string]any{"phase": "aggregate", "rows": len(rows), "labels": len(counts)})) {
		return procedure.RunOutput{}, fmt.Errorf("canceled")
	}

	model := &CentroidModel{
		Features:  features,
		Centroids: map[string][]float64{},
		Counts:    counts,
	}
	for label, sum := range sums {
		centroid := make([]float64, len(sum))
		for i, v := range sum {
			centroid[i] = v / float64(counts[label])
		}
		model.Centroids[label] = centroid
		model.Labels = append(model.Labels, label)
	}
	sort.Strings(model.Labels)

	digest, err := storeCentroids(eng.Artifacts(), cfg.ModelFileUrl, model)
	if err != nil {
		return procedure.RunOutput{}, err
	}

	log.Info("trained classifier for {{labels}} labels from {{rows}} rows", "labels", len(model.Labels), "rows", len(rows))
	return procedure.RunOutput{
		Results: runtime.MustValue(map[string]any{
			"labelCounts": counts,
			"features":    features,
			"modelDigest": digest,
		}),
		Details: runtime.MustValue(map[string]any{
			"centroids": model.Centroids,
		}),
	}, nil
}

func storeCentroids(fs vfs.FileSystem, path string, m *CentroidModel) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("cannot store model %q: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("cannot store model %q: %w", path, err)
		}
	}
	if err := vfs.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot store model %q: %w", path, err)
	}
	return utils.HashData(data), nil
}
