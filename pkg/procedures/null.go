package procedures

import (
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
)

const TYPE_NULL = "null"

func init() {
	procedure.MustRegisterKind[NullConfig](TYPE_NULL, "do nothing", newNull)
}

// NullConfig accepts no parameters beyond the common attributes.
type NullConfig struct {
	procedure.CommonConfig `json:",inline"`
}

type null struct {
	procedure.Common
}

var _ procedure.Procedure = (*null)(nil)

func newNull(dir entity.Directory, config runtime.PolyConfig, _ *NullConfig, _ runtime.ProgressFunc) (procedure.Procedure, error) {
	return &null{Common: procedure.NewCommon(dir, config)}, nil
}

func (p *null) GetStatus() runtime.Value {
	return runtime.Value{}
}

func (p *null) Run(run procedure.RunConfig, _ runtime.ProgressFunc) (procedure.RunOutput, error) {
	if _, err := procedure.Overlay[NullConfig](p, run); err != nil {
		return procedure.RunOutput{}, err
	}
	return procedure.RunOutput{}, nil
}
