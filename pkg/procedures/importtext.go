package procedures

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/stratadb/strata/pkg/dataset"
	"github.com/stratadb/strata/pkg/datasets"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/sql"
)

const TYPE_IMPORT_TEXT = "import.text"

// IMPORT_CHUNK is the number of input records between two progress
// reports.
const IMPORT_CHUNK = 1000

func init() {
	procedure.MustRegisterKind[ImportTextConfig](TYPE_IMPORT_TEXT, "import a delimited text file into a dataset", newImportText)
}

// ImportTextConfig describes a text import. The source file is read
// from the artifact store, filtered and projected rows are written
// into a freshly created output dataset.
type ImportTextConfig struct {
	procedure.CommonConfig `json:",inline"`

	DataFileUrl   string             `json:"dataFileUrl"`
	OutputDataset runtime.PolyConfig `json:"outputDataset,omitempty"`

	Headers             []string `json:"headers,omitempty"`
	AutoGenerateHeaders bool     `json:"autoGenerateHeaders,omitempty"`
	Delimiter           string   `json:"delimiter,omitempty"`
	Quoter              string   `json:"quoter,omitempty"`
	Encoding            string   `json:"encoding,omitempty"`
	Limit               *int64   `json:"limit,omitempty"`
	Offset              int64    `json:"offset,omitempty"`
	IgnoreBadLines      bool     `json:"ignoreBadLines,omitempty"`

	Select sql.Projection `json:"select,omitempty"`
	Where  sql.Expr       `json:"where,omitempty"`
	Named  sql.Expr       `json:"named,omitempty"`
}

func (c *ImportTextConfig) Default() {
	if c.OutputDataset.Kind == "" {
		c.OutputDataset.Kind = datasets.TYPE_TABULAR
	}
	if c.Delimiter == "" {
		c.Delimiter = ","
	}
	if c.Quoter == "" {
		c.Quoter = `"`
	}
	if c.Encoding == "" {
		c.Encoding = "utf-8"
	}
	if c.Select.IsZero() {
		c.Select = sql.MustProjection("*")
	}
	if c.Where.IsZero() {
		c.Where = sql.MustExpr("TRUE")
	}
	if c.Named.IsZero() {
		c.Named = sql.MustExpr("lineNumber()")
	}
}

func (c *ImportTextConfig) Validate() error {
	if c.DataFileUrl == "" {
		return fmt.Errorf("a data file must be given")
	}
	if len([]rune(c.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character: %q", c.Delimiter)
	}
	if c.Quoter != `"` {
		return fmt.Errorf("only double quote quoting is supported: %q", c.Quoter)
	}
	switch strings.ToLower(c.Encoding) {
	case "utf-8", "utf8", "ascii":
	default:
		return fmt.Errorf("unsupported encoding %q", c.Encoding)
	}
	if c.Limit != nil && *c.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if c.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	if c.AutoGenerateHeaders && len(c.Headers) > 0 {
		return fmt.Errorf("headers and autoGenerateHeaders cannot be combined")
	}
	return nil
}

type importText struct {
	procedure.Common
	cfg *ImportTextConfig
}

var _ procedure.Procedure = (*importText)(nil)

func newImportText(dir entity.Directory, config runtime.PolyConfig, cfg *ImportTextConfig, _ runtime.ProgressFunc) (procedure.Procedure, error) {
	return &importText{
		Common: procedure.NewCommon(dir, config),
		cfg:    cfg,
	}, nil
}

func (p *importText) GetStatus() runtime.Value {
	return runtime.MustValue(map[string]any{
		"dataFileUrl":   p.cfg.DataFileUrl,
		"outputDataset": p.cfg.OutputDataset.Kind,
	})
}

func (p *importText) Run(run procedure.RunConfig, progress runtime.ProgressFunc) (procedure.RunOutput, error) {
	cfg, err := procedure.Overlay[ImportTextConfig](p, run)
	if err != nil {
		return procedure.RunOutput{}, err
	}
	eng, err := engineOf(p)
	if err != nil {
		return procedure.RunOutput{}, err
	}

	file, err := eng.Artifacts().Open(cfg.DataFileUrl)
	if err != nil {
		return procedure.RunOutput{}, fmt.Errorf("cannot open data file %q: %w", cfg.DataFileUrl, err)
	}
	defer file.Close()

	out, err := eng.Construct(entity.DATASETS, cfg.OutputDataset, progress)
	if err != nil {
		return procedure.RunOutput{}, fmt.Errorf("cannot create output dataset: %w", err)
	}
	target := out.(dataset.Dataset)

	r := csv.NewReader(file)
	r.Comma = []rune(cfg.Delimiter)[0]
	r.FieldsPerRecord = -1

	var (
		headers  = cfg.Headers
		line     int
		records  int64
		rows     int64
		rejected int64
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if cfg.IgnoreBadLines && errors.As(err, &pe) {
				rejected++
				continue
			}
			return procedure.RunOutput{}, fmt.Errorf("cannot read %q: %w", cfg.DataFileUrl, err)
		}
		line, _ = r.FieldPos(0)

		if len(headers) == 0 {
			if cfg.AutoGenerateHeaders {
				headers = make([]string, len(rec))
				for i := range rec {
					headers[i] = strconv.Itoa(i)
				}
			} else {
				headers = append([]string(nil), rec...)
				continue
			}
		}

		records++
		if records <= cfg.Offset {
			continue
		}
		if cfg.Limit != nil && records-cfg.Offset > *cfg.Limit {
			break
		}

		if len(rec) != len(headers) {
			if cfg.IgnoreBadLines {
				rejected++
				continue
			}
			return procedure.RunOutput{}, fmt.Errorf("line %d: expected %d columns, but found %d", line, len(headers), len(rec))
		}

		cells := sql.Row{}
		for i, h := range headers {
			cells[h] = convertCell(rec[i])
		}
		scope := &sql.Scope{
			Row: cells,
			Funcs: map[string]func(args []any) (any, error){
				"lineNumber": func(_ []any) (any, error) { return float64(line), nil },
			},
		}

		ok, err := sql.EvalBool(cfg.Where.Expression(), scope)
		if err != nil {
			return procedure.RunOutput{}, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}

		name, err := sql.Eval(cfg.Named.Expression(), scope)
		if err != nil {
			return procedure.RunOutput{}, fmt.Errorf("line %d: %w", line, err)
		}
		projected, err := sql.Project(cfg.Select.Items(), scope)
		if err != nil {
			return procedure.RunOutput{}, fmt.Errorf("line %d: %w", line, err)
		}
		if err := target.AppendRow(cellName(name), projected); err != nil {
			return procedure.RunOutput{}, fmt.Errorf("line %d: %w", line, err)
		}
		rows++

		if records%IMPORT_CHUNK == 0 {
			if !progress.Report(runtime.MustValue(map[string]any{"lines": records, "rows": rows})) {
				return procedure.RunOutput{}, fmt.Errorf("canceled at line %d", line)
			}
		}
	}
	if err := target.Commit(); err != nil {
		return procedure.RunOutput{}, err
	}

	log.Info("imported {{rows}} rows from {{file}} into {{dataset}}", "rows", rows, "file", cfg.DataFileUrl, "dataset", target.GetName())
	return procedure.RunOutput{
		Results: runtime.MustValue(map[string]any{
			"dataset":       target.GetName(),
			"rowCount":      rows,
			"rejectedLines": rejected,
		}),
		Details: runtime.MustValue(map[string]any{
			"dataset":    target.GetName(),
			"headers":    headers,
			"lines":      records,
			"commitHash": target.CommitHash(),
		}),
	}, nil
}

// convertCell turns a text cell into the evaluator's value model.
// Everything looking like a finite number becomes one, anything else
// stays text.
func convertCell(s string) any {
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// cellName renders a row name produced by a naming expression.
// Integral numbers lose their fraction part.
func cellName(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%v", v)
}
