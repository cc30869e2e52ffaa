package procedures

import (
	"fmt"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
)

const TYPE_CREATE_ENTITY = "createEntity"

func init() {
	procedure.MustRegisterKind[CreateEntityConfig](TYPE_CREATE_ENTITY, "create an entity from an envelope", newCreateEntity)
}

// CreateEntityConfig describes the entity to create: its category
// and its configuration envelope.
type CreateEntityConfig struct {
	procedure.CommonConfig `json:",inline"`

	Category entity.Category    `json:"category"`
	Entity   runtime.PolyConfig `json:"entity"`
}

func (c *CreateEntityConfig) Validate() error {
	switch c.Category {
	case entity.PROCEDURES, entity.DATASETS, entity.FUNCTIONS:
	case "":
		return fmt.Errorf("no category given")
	default:
		return fmt.Errorf("unknown category %q", c.Category)
	}
	if c.Entity.Kind == "" {
		return fmt.Errorf("no entity kind given")
	}
	return nil
}

type createEntity struct {
	procedure.Common
	cfg *CreateEntityConfig
}

var _ procedure.Procedure = (*createEntity)(nil)

func newCreateEntity(dir entity.Directory, config runtime.PolyConfig, cfg *CreateEntityConfig, _ runtime.ProgressFunc) (procedure.Procedure, error) {
	return &createEntity{
		Common: procedure.NewCommon(dir, config),
		cfg:    cfg,
	}, nil
}

func (p *createEntity) GetStatus() runtime.Value {
	return runtime.MustValue(map[string]any{
		"category": p.cfg.Category.String(),
		"kind":     p.cfg.Entity.Kind,
	})
}

func (p *createEntity) Run(run procedure.RunConfig, progress runtime.ProgressFunc) (procedure.RunOutput, error) {
	cfg, err := procedure.Overlay[CreateEntityConfig](p, run)
	if err != nil {
		return procedure.RunOutput{}, err
	}
	eng, err := engineOf(p)
	if err != nil {
		return procedure.RunOutput{}, err
	}

	obj, err := eng.Construct(cfg.Category, cfg.Entity, progress)
	if err != nil {
		return procedure.RunOutput{}, err
	}

	config := cfg.Entity
	config.ID = obj.GetName()
	results := map[string]any{
		"category": cfg.Category.String(),
		"name":     obj.GetName(),
		"config":   config,
		"status":   statusOf(obj).Data(),
	}
	return procedure.RunOutput{
		Results: runtime.MustValue(results),
		Details: runtime.MustValue(results),
	}, nil
}
