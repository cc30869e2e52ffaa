package healthz

import (
	"io"
	"net/http"
)

// Healthz handles the /healthz endpoint. It answers with 200 OK as
// long as all registered liveness checks have reported in time and
// with 500 Internal Server Error otherwise. The body lists the last
// report time per check.
func Healthz(w http.ResponseWriter, r *http.Request) {
	ok, info := HealthInfo()
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	io.WriteString(w, info)
}
