package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stratadb/strata/pkg/dataset"
	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/function"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/server"
)

// EngineAccess exposes an engine below a URL prefix.
//
// The routes are
//
//	GET    <prefix>/                                  engine info
//	GET    <prefix>/types                             known categories
//	GET    <prefix>/types/{category}                  registered kinds
//	GET    <prefix>/types/{category}/{kind}           kind descriptor
//	*      <prefix>/types/{category}/{kind}/doc       kind documentation
//	*      <prefix>/types/{category}/{kind}/...       custom kind routes
//	GET    <prefix>/{category}                        entity names
//	POST   <prefix>/{category}                        create with generated name
//	GET    <prefix>/{category}/{name}                 entity config and status
//	PUT    <prefix>/{category}/{name}                 create entity
//	DELETE <prefix>/{category}/{name}                 delete entity
//	GET    <prefix>/procedures/{name}/runs            recorded runs
//	POST   <prefix>/procedures/{name}/runs            execute a run
//	GET    <prefix>/procedures/{name}/runs/{id}       single run record
//	GET    <prefix>/procedures/{name}/runs/{id}/details  expensive run view
//
// Bodies are accepted as JSON or YAML. Error responses carry an
// Error object, list responses an Items object.
type EngineAccess struct {
	engine   engine.Engine
	prefix   string
	catalogs map[entity.Category]catalog
}

// catalog is the registry view needed for the type routes.
type catalog interface {
	TypeNames() []string
	GetType(name string) (*runtime.KindInfo, bool)
}

var _ http.Handler = (*EngineAccess)(nil)

func New(eng engine.Engine, prefix string) *EngineAccess {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &EngineAccess{
		engine: eng,
		prefix: prefix,
		catalogs: map[entity.Category]catalog{
			entity.PROCEDURES: procedure.Kinds(),
			entity.DATASETS:   dataset.Kinds(),
			entity.FUNCTIONS:  function.Kinds(),
		},
	}
}

func (a *EngineAccess) RegisterHandler(srv *server.Server) {
	srv.Handle(a.prefix, a)
}

func (a *EngineAccess) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Debug("{{method}} {{path}}", "method", req.Method, "path", req.URL.Path)

	comps := strings.Split(req.URL.Path[len(a.prefix):], "/")
	if n := len(comps); n > 1 && comps[n-1] == "" {
		comps = comps[:n-1]
	}

	if comps[0] == "" {
		a.info(w, req)
		return
	}
	if comps[0] == "types" {
		a.types(w, req, comps[1:])
		return
	}

	cat, ok := categoryOf(comps[0])
	if !ok {
		a.error(w, http.StatusNotFound, fmt.Sprintf("unknown category %q", comps[0]))
		return
	}
	switch {
	case len(comps) == 1:
		a.collection(w, req, cat)
	case len(comps) == 2:
		a.entity(w, req, cat, comps[1])
	case cat == entity.PROCEDURES && comps[2] == "runs":
		a.runs(w, req, comps[1], comps[3:])
	default:
		a.error(w, http.StatusNotFound, "invalid path")
	}
}

func (a *EngineAccess) info(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		a.error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a.reply(w, http.StatusOK, &Info{
		Name:        a.engine.GetName(),
		Description: a.engine.GetDescription(),
		Categories:  categories(),
	})
}

func (a *EngineAccess) types(w http.ResponseWriter, req *http.Request, comps []string) {
	if len(comps) == 0 {
		if req.Method != http.MethodGet {
			a.error(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		a.reply(w, http.StatusOK, &Items[string]{categories()})
		return
	}

	cat, ok := categoryOf(comps[0])
	if !ok {
		a.error(w, http.StatusNotFound, fmt.Sprintf("unknown category %q", comps[0]))
		return
	}
	ctl := a.catalogs[cat]

	if len(comps) == 1 {
		if req.Method != http.MethodGet {
			a.error(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var kinds []Kind
		for _, name := range ctl.TypeNames() {
			ki, _ := ctl.GetType(name)
			kinds = append(kinds, Kind{Name: ki.Name, Description: ki.Description})
		}
		a.reply(w, http.StatusOK, &Items[Kind]{kinds})
		return
	}

	ki, ok := ctl.GetType(comps[1])
	if !ok {
		a.error(w, http.StatusNotFound, fmt.Sprintf("unknown kind: %s %q", cat.Elem(), comps[1]))
		return
	}

	switch {
	case len(comps) == 2:
		if req.Method != http.MethodGet {
			a.error(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		a.reply(w, http.StatusOK, &Kind{Name: ki.Name, Description: ki.Description})
	case comps[2] == "doc":
		if ki.Docs == nil {
			a.error(w, http.StatusNotFound, fmt.Sprintf("no documentation for %s kind %q", cat.Elem(), ki.Name))
			return
		}
		ki.Docs.ServeHTTP(w, req)
	default:
		if ki.Custom == nil {
			a.error(w, http.StatusNotFound, fmt.Sprintf("no custom routes for %s kind %q", cat.Elem(), ki.Name))
			return
		}
		ki.Custom.ServeHTTP(w, req)
	}
}

func (a *EngineAccess) collection(w http.ResponseWriter, req *http.Request, cat entity.Category) {
	switch req.Method {
	case http.MethodGet:
		names, err := a.engine.Names(cat)
		if err != nil {
			a.error(w, statusOf(err), err.Error())
			return
		}
		a.reply(w, http.StatusOK, &Items[string]{names})
	case http.MethodPost:
		a.create(w, req, cat, "")
	default:
		a.error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *EngineAccess) entity(w http.ResponseWriter, req *http.Request, cat entity.Category, name string) {
	switch req.Method {
	case http.MethodGet:
		obj, err := a.engine.Lookup(cat, name)
		if err != nil {
			a.error(w, statusOf(err), err.Error())
			return
		}
		a.reply(w, http.StatusOK, a.describe(cat, obj, false))
	case http.MethodPut:
		a.create(w, req, cat, name)
	case http.MethodDelete:
		if err := a.engine.Delete(cat, name); err != nil {
			a.error(w, statusOf(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		a.error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// create handles both named creation via PUT and anonymous creation
// via POST on the collection. The path name fills a missing id and
// must otherwise agree with the body.
func (a *EngineAccess) create(w http.ResponseWriter, req *http.Request, cat entity.Category, name string) {
	val, status, err := readBody(req)
	if err != nil {
		a.error(w, status, err.Error())
		return
	}

	var config runtime.PolyConfig
	if err := val.Decode(&config); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	if name != "" {
		if config.ID == "" {
			config.ID = name
		} else if config.ID != name {
			a.error(w, http.StatusBadRequest, "name mismatch")
			return
		}
	}

	obj, err := a.engine.Construct(cat, config, nil)
	if err != nil {
		a.error(w, statusOf(err), err.Error())
		return
	}
	a.reply(w, http.StatusCreated, a.describe(cat, obj, true))
}

func (a *EngineAccess) runs(w http.ResponseWriter, req *http.Request, name string, comps []string) {
	if len(comps) == 0 {
		switch req.Method {
		case http.MethodGet:
			p, err := a.engine.Procedure(name)
			if err != nil {
				a.error(w, statusOf(err), err.Error())
				return
			}
			a.reply(w, http.StatusOK, &Items[*procedure.Run]{p.Runs().List()})
		case http.MethodPost:
			a.run(w, req, name)
		default:
			a.error(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if req.Method != http.MethodGet {
		a.error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	p, err := a.engine.Procedure(name)
	if err != nil {
		a.error(w, statusOf(err), err.Error())
		return
	}
	r, err := p.Runs().Get(comps[0])
	if err != nil {
		a.error(w, statusOf(err), err.Error())
		return
	}
	switch {
	case len(comps) == 1:
		a.reply(w, http.StatusOK, r)
	case len(comps) == 2 && comps[1] == "details":
		a.reply(w, http.StatusOK, p.GetRunDetails(r))
	default:
		a.error(w, http.StatusNotFound, "invalid path")
	}
}

func (a *EngineAccess) run(w http.ResponseWriter, req *http.Request, name string) {
	val, status, err := readBody(req)
	if err != nil {
		a.error(w, status, err.Error())
		return
	}
	var run procedure.RunConfig
	if err := val.Decode(&run); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := a.engine.Run(name, run, nil)
	if err != nil {
		a.error(w, statusOf(err), err.Error())
		return
	}
	a.reply(w, http.StatusCreated, record)
}

// describable is satisfied by the entities of all categories.
type describable interface {
	GetConfig() runtime.PolyConfig
	GetStatus() runtime.Value
}

func (a *EngineAccess) describe(cat entity.Category, obj entity.Entity, created bool) *EntityInfo {
	d, ok := obj.(describable)
	if !ok {
		return &EntityInfo{}
	}
	info := &EntityInfo{
		Config: d.GetConfig(),
		Status: d.GetStatus(),
	}
	if created && cat == entity.PROCEDURES {
		if p, ok := obj.(procedure.Procedure); ok {
			if runs := p.Runs().List(); len(runs) > 0 {
				info.FirstRun = runs[0]
			}
		}
	}
	return info
}

func (a *EngineAccess) reply(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		body = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (a *EngineAccess) error(w http.ResponseWriter, status int, msg string) {
	a.reply(w, status, &Error{msg})
}

func categoryOf(s string) (entity.Category, bool) {
	switch c := entity.Category(s); c {
	case entity.PROCEDURES, entity.DATASETS, entity.FUNCTIONS:
		return c, true
	}
	return "", false
}

func categories() []string {
	return []string{
		entity.DATASETS.String(),
		entity.FUNCTIONS.String(),
		entity.PROCEDURES.String(),
	}
}

// readBody reads a JSON or YAML request body into a generic value.
// An empty body yields an empty value.
func readBody(req *http.Request) (runtime.Value, int, error) {
	var none runtime.Value

	t := req.Header.Get("Content-Type")
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "", "application/json", "application/yaml", "text/yaml":
	default:
		return none, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported content type %q", t)
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return none, http.StatusInternalServerError, err
	}
	val, err := runtime.ParseValue(data)
	if err != nil {
		return none, http.StatusBadRequest, err
	}
	return val, 0, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, procedure.ErrDuplicateRun):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// Info describes the engine behind the endpoint.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
}

// Kind describes a registered entity kind.
type Kind struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EntityInfo is the external view of an entity. FirstRun is only set
// in creation responses of procedures configured with runOnCreation.
type EntityInfo struct {
	Config   runtime.PolyConfig `json:"config"`
	Status   runtime.Value      `json:"status"`
	FirstRun *procedure.Run     `json:"firstRun,omitempty"`
}

type Error struct {
	Error string `json:"error"`
}

type Items[T any] struct {
	Items []T `json:"items"`
}
