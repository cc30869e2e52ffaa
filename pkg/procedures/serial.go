package procedures

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
)

const TYPE_SERIAL = "serial"

func init() {
	procedure.MustRegisterKind[SerialConfig](TYPE_SERIAL, "run steps in order", newSerial)
}

// SerialConfig describes an ordered sequence of child procedures.
// Common holds parameters shared by all steps, every step overlays
// them with its own parameters by the standard merge rule.
type SerialConfig struct {
	procedure.CommonConfig `json:",inline"`

	Common runtime.Value `json:"common,omitempty"`
	Steps  []Step        `json:"steps,omitempty"`
}

// Step is the envelope of one child procedure plus an optional step
// name used in results and error messages.
type Step struct {
	runtime.PolyConfig `json:",inline"`

	Name string `json:"name,omitempty"`
}

// StepName is the label of a step: the explicit name, the child id
// or the step position.
func (s *Step) StepName(i int) string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("step%d", i)
}

func (c *SerialConfig) Validate() error {
	used := sets.New[string]()
	for i := range c.Steps {
		s := &c.Steps[i]
		name := s.StepName(i)
		if used.Has(name) {
			return fmt.Errorf("duplicate step %q", name)
		}
		used.Insert(name)
		if s.Kind == "" {
			return fmt.Errorf("no kind given for step %q", name)
		}
	}
	return nil
}

// serial keeps its children in declaration order. They are built
// through the kind registry when the composite is configured, so a
// malformed step fails the whole construction.
type serial struct {
	procedure.Common
	cfg      *SerialConfig
	names    []string
	children []procedure.Procedure
}

var _ procedure.Procedure = (*serial)(nil)

func newSerial(dir entity.Directory, config runtime.PolyConfig, cfg *SerialConfig, progress runtime.ProgressFunc) (procedure.Procedure, error) {
	p := &serial{
		Common: procedure.NewCommon(dir, config),
		cfg:    cfg,
	}
	for i := range cfg.Steps {
		s := &cfg.Steps[i]
		name := s.StepName(i)
		child, err := procedure.Construct(dir, runtime.PolyConfig{
			Kind:   s.Kind,
			ID:     name,
			Params: runtime.Merge(cfg.Common, s.Params),
		}, progress)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", name, err)
		}
		p.names = append(p.names, name)
		p.children = append(p.children, child)
	}
	return p, nil
}

func (p *serial) GetStatus() runtime.Value {
	steps := make([]any, len(p.children))
	for i, c := range p.children {
		steps[i] = map[string]any{
			"name":   p.names[i],
			"kind":   c.GetConfig().Kind,
			"status": c.GetStatus().Data(),
		}
	}
	return runtime.MustValue(map[string]any{"steps": steps})
}

// Run executes the children strictly in order. The first failure
// aborts the sequence and fails the composite run. Run parameters
// only take effect on the common parameter block, the step structure
// is fixed since construction.
func (p *serial) Run(run procedure.RunConfig, progress runtime.ProgressFunc) (procedure.RunOutput, error) {
	cfg, err := procedure.Overlay[SerialConfig](p, run)
	if err != nil {
		return procedure.RunOutput{}, err
	}

	results := make([]any, 0, len(p.children))
	details := make([]any, 0, len(p.children))
	for i, child := range p.children {
		name := p.names[i]
		if !progress.Report(runtime.MustValue(map[string]any{"step": name, "event": "start"})) {
			return procedure.RunOutput{}, fmt.Errorf("canceled at step %q", name)
		}
		out, err := child.Run(procedure.RunConfig{
			ID:     fmt.Sprintf("%s/%s", run.ID, name),
			Params: runtime.Merge(cfg.Common, p.cfg.Steps[i].Params),
		}, stepProgress(progress, name))
		if err != nil {
			return procedure.RunOutput{}, fmt.Errorf("step %q failed: %w", name, err)
		}
		results = append(results, map[string]any{"name": name, "results": out.Results.Data()})
		details = append(details, map[string]any{"name": name, "details": out.Details.Data()})
	}
	return procedure.RunOutput{
		Results: runtime.MustValue(map[string]any{"steps": results}),
		Details: runtime.MustValue(map[string]any{"steps": details}),
	}, nil
}

// stepProgress annotates child progress values with the step name.
// Non mapping values are passed through unchanged.
func stepProgress(progress runtime.ProgressFunc, name string) runtime.ProgressFunc {
	if progress == nil {
		return nil
	}
	return func(info runtime.Value) bool {
		if _, ok := info.Map(); ok {
			info = runtime.Merge(info, runtime.MustValue(map[string]any{"step": name}))
		}
		return progress(info)
	}
}
