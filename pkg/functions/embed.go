package functions

import (
	"fmt"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/function"
	"github.com/stratadb/strata/pkg/runtime"
)

const TYPE_EMBED_APPLY = "embed.apply"

func init() {
	function.MustRegisterKind[EmbedApplyConfig](TYPE_EMBED_APPLY, "apply a stored embedding to a row", newEmbedApply)
}

// EmbedApplyConfig names the model artifact to apply.
type EmbedApplyConfig struct {
	ModelFileUrl string `json:"modelFileUrl"`
}

func (c *EmbedApplyConfig) Validate() error {
	if c.ModelFileUrl == "" {
		return fmt.Errorf("a model file must be given")
	}
	return nil
}

type embedApply struct {
	function.Common
	model *EmbedModel
}

var _ function.Function = (*embedApply)(nil)

func newEmbedApply(dir entity.Directory, config runtime.PolyConfig, cfg *EmbedApplyConfig, _ runtime.ProgressFunc) (function.Function, error) {
	if dir == nil {
		return nil, fmt.Errorf("no artifact store available")
	}
	model, err := LoadModel(dir.Artifacts(), cfg.ModelFileUrl)
	if err != nil {
		return nil, err
	}
	return &embedApply{
		Common: function.NewCommon(dir, config),
		model:  model,
	}, nil
}

func (f *embedApply) GetStatus() runtime.Value {
	return runtime.MustValue(map[string]any{
		"inputColumns":     f.model.InputColumns,
		"outputDimensions": f.model.OutputDimensions(),
	})
}

// Call maps a row object with the model's input columns to its
// embedding coordinates dim0..dimN.
func (f *embedApply) Call(input runtime.Value) (runtime.Value, error) {
	in, ok := input.Map()
	if !ok {
		return runtime.Value{}, fmt.Errorf("a row object must be given")
	}
	vec := make([]float64, len(f.model.InputColumns))
	for i, col := range f.model.InputColumns {
		v, ok := in[col]
		if !ok {
			return runtime.Value{}, fmt.Errorf("missing input column %q", col)
		}
		n, ok := v.(float64)
		if !ok {
			return runtime.Value{}, fmt.Errorf("input column %q is not numeric", col)
		}
		vec[i] = n
	}
	coords := f.model.Embed(vec)
	out := map[string]any{}
	for i, v := range coords {
		out[fmt.Sprintf("dim%d", i)] = v
	}
	return runtime.NewValue(out)
}
