package procedure

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/utils"
)

var ErrDuplicateRun = fmt.Errorf("run id already used")

// RunConfig describes one execution request. The params overlay the
// static procedure configuration for this run only.
type RunConfig struct {
	ID     string        `json:"id,omitempty"`
	Params runtime.Value `json:"params,omitempty"`
}

// RunOutput is the result of a successful run. Results is the compact
// outcome reported in listings, Details the expensive full view.
type RunOutput struct {
	Results runtime.Value `json:"results,omitempty"`
	Details runtime.Value `json:"details,omitempty"`
}

// Run is the record of one finished execution.
type Run struct {
	Config      RunConfig        `json:"config"`
	RunStarted  utils.Timestamp  `json:"runStarted"`
	RunFinished *utils.Timestamp `json:"runFinished,omitempty"`
	Results     runtime.Value    `json:"results,omitempty"`
	Details     runtime.Value    `json:"details,omitempty"`
}

func (r *Run) Finished() bool {
	return r.RunFinished != nil
}

// NewRunId provides a fresh unique run id.
func NewRunId() string {
	return uuid.NewString()
}

// RunCollection is the append only store of finished runs of one
// procedure. Records are kept in completion order. A run appears
// either completely or not at all, ids of failed attempts are never
// recorded.
type RunCollection struct {
	lock    sync.RWMutex
	owner   Procedure
	order   []string
	runs    map[string]*Run
	pending sets.Set[string]
}

var _ entity.Entity = (*RunCollection)(nil)

func NewRunCollection() *RunCollection {
	return &RunCollection{
		runs:    map[string]*Run{},
		pending: sets.New[string](),
	}
}

func (c *RunCollection) GetName() string {
	return "runs"
}

func (c *RunCollection) GetDescription() string {
	return "recorded runs"
}

func (c *RunCollection) GetParent() entity.Entity {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.owner
}

func (c *RunCollection) IsCollection() bool {
	return true
}

func (c *RunCollection) setOwner(p Procedure) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.owner = p
}

// reserve claims a run id before execution starts. The id is not
// visible in the store until commit is called for it.
func (c *RunCollection) reserve(id string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.runs[id]; ok {
		return ErrDuplicateRun
	}
	if c.pending.Has(id) {
		return ErrDuplicateRun
	}
	c.pending.Insert(id)
	return nil
}

// release gives up a reservation after a failed run.
func (c *RunCollection) release(id string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pending.Delete(id)
}

// commit atomically appends the record for a reserved id.
func (c *RunCollection) commit(r *Run) {
	c.lock.Lock()
	defer c.lock.Unlock()
	id := r.Config.ID
	c.pending.Delete(id)
	c.runs[id] = r
	c.order = append(c.order, id)
}

func (c *RunCollection) clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.order = nil
	c.runs = map[string]*Run{}
	c.pending = sets.New[string]()
}

func (c *RunCollection) Get(id string) (*Run, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	r, ok := c.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %q", entity.ErrNotFound, id)
	}
	return r, nil
}

func (c *RunCollection) Has(id string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	_, ok := c.runs[id]
	return ok
}

// Ids returns the recorded run ids in completion order.
func (c *RunCollection) Ids() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]string(nil), c.order...)
}

func (c *RunCollection) List() []*Run {
	c.lock.RLock()
	defer c.lock.RUnlock()
	list := make([]*Run, len(c.order))
	for i, id := range c.order {
		list[i] = c.runs[id]
	}
	return list
}

func (c *RunCollection) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.order)
}

////////////////////////////////////////////////////////////////////////////////

// Perform executes one run of a procedure and records the outcome.
// It generates a missing run id, rejects already used ids, stamps the
// start and finish times and appends the record on success. A failed
// run leaves no trace in the store apart from the returned error.
func Perform(p Procedure, run RunConfig, progress runtime.ProgressFunc) (*Run, error) {
	if run.ID == "" {
		run.ID = NewRunId()
	}
	runs := p.Runs()
	if err := runs.reserve(run.ID); err != nil {
		return nil, fmt.Errorf("cannot run %s %q: %w", p.GetKind(), p.GetName(), err)
	}

	started := now(p)
	log.Debug("run {{run}} of {{kind}} {{name}} started", "run", run.ID, "kind", p.GetKind(), "name", p.GetName())

	out, err := p.Run(run, progress)
	if err != nil {
		runs.release(run.ID)
		log.Error("run {{run}} of {{kind}} {{name}} failed: {{error}}", "run", run.ID, "kind", p.GetKind(), "name", p.GetName(), "error", err.Error())
		return nil, fmt.Errorf("run %q of %s %q failed: %w", run.ID, p.GetKind(), p.GetName(), err)
	}

	finished := now(p)
	record := &Run{
		Config:      run,
		RunStarted:  started,
		RunFinished: &finished,
		Results:     out.Results,
		Details:     out.Details,
	}
	runs.commit(record)
	log.Info("run {{run}} of {{kind}} {{name}} finished", "run", run.ID, "kind", p.GetKind(), "name", p.GetName())
	return record, nil
}

func now(p Procedure) utils.Timestamp {
	if d := p.Directory(); d != nil {
		return d.Now()
	}
	return utils.NewTimestamp()
}

// Overlay merges the run params over the static procedure params and
// decodes the result into a fresh configuration object, applying
// defaults and validation again. Neither input is modified.
func Overlay[C any](p Procedure, run RunConfig) (*C, error) {
	merged := runtime.Merge(p.GetConfig().Params, run.Params)
	var cfg C
	if err := merged.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	if d, ok := any(&cfg).(runtime.Defaultable); ok {
		d.Default()
	}
	if v, ok := any(&cfg).(runtime.Validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid run configuration: %w", err)
		}
	}
	return &cfg, nil
}
