package healthz

import (
	"fmt"
	"sync"
	"time"

	"github.com/mandelsoft/logging"
)

var REALM = logging.DefineRealm("healthz", "Server health monitoring")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

type check struct {
	last    time.Time
	timeout time.Duration
}

var (
	checks = map[string]*check{}
	lock   sync.Mutex
)

// Start registers a liveness check. The component is expected to
// call Tick at least once per period, with a grace of three periods
// before the check is considered outdated.
func Start(key string, period time.Duration) {
	lock.Lock()
	defer lock.Unlock()

	checks[key] = &check{time.Now(), 3 * period}
}

// Tick reports the component for the given key as alive. The key
// must have been registered with Start before.
func Tick(key string) {
	lock.Lock()
	defer lock.Unlock()

	c := checks[key]
	if c == nil {
		panic(fmt.Sprintf("check with key %q not configured", key))
	}
	c.last = time.Now()
}

// End removes a liveness check again, for components shutting down
// deliberately.
func End(key string) {
	lock.Lock()
	defer lock.Unlock()

	delete(checks, key)
}

func IsHealthy() bool {
	ok, _ := HealthInfo()
	return ok
}

// HealthInfo reports whether all registered checks are up to date,
// together with a textual report of the last report times.
func HealthInfo() (bool, string) {
	lock.Lock()
	defer lock.Unlock()

	info := ""
	now := time.Now()
	for key, c := range checks {
		limit := now.Add(-c.timeout)
		info = fmt.Sprintf("%s%s: %s\n", info, key, c.last)
		if c.last.Before(limit) {
			log.Warn("outdated health check", "key", key, "delay", limit.Sub(c.last))
			return false, info
		}
		log.Debug("last health report", "key", key, "last", c.last)
	}
	return true, info
}
