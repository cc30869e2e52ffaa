// Package procedures provides the builtin procedure kinds.
package procedures

import (
	"fmt"

	"github.com/mandelsoft/logging"

	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
)

var REALM = logging.DefineRealm("procedures", "Builtin procedure kinds")

var log = logging.DefaultContext().Logger(REALM)

// engineOf provides the engine a procedure is attached to. Kinds
// creating or querying other entities need a complete engine, a bare
// directory is not sufficient.
func engineOf(p procedure.Procedure) (engine.Engine, error) {
	eng, ok := p.Directory().(engine.Engine)
	if !ok {
		return nil, fmt.Errorf("no engine available")
	}
	return eng, nil
}

func statusOf(e entity.Entity) runtime.Value {
	if s, ok := e.(interface{ GetStatus() runtime.Value }); ok {
		return s.GetStatus()
	}
	return runtime.Value{}
}
