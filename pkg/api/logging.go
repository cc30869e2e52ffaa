package api

import (
	"github.com/mandelsoft/logging"
)

var REALM = logging.DefineRealm("api", "engine REST interface")

var log logging.Logger = logging.DefaultContext().Logger(REALM)
