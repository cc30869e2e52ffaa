package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/projectionfs"
	"github.com/spf13/pflag"

	"github.com/stratadb/strata/pkg/api"
	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/healthz"
	"github.com/stratadb/strata/pkg/server"
	"github.com/stratadb/strata/pkg/service"

	_ "github.com/stratadb/strata/pkg/datasets"
	_ "github.com/stratadb/strata/pkg/functions"
	_ "github.com/stratadb/strata/pkg/procedures"
)

func Error(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}

func main() {
	var port int
	var level string = "info"
	var name string = "strata"
	var artifacts string
	var spec string

	flags := pflag.NewFlagSet("strata", pflag.ExitOnError)

	flags.IntVarP(&port, "port", "p", 8080, "server port")
	flags.StringVarP(&level, "log-level", "L", level, "log level")
	flags.StringVarP(&name, "name", "n", name, "engine name")
	flags.StringVarP(&artifacts, "artifacts", "a", "", "artifact directory (default in-memory)")
	flags.StringVarP(&spec, "spec", "s", "", "engine spec file with initial entities")

	err := flags.Parse(os.Args[1:])
	if err != nil {
		Error("invalid arguments: %s", err)
	}

	l, err := logging.ParseLevel(level)
	if err != nil {
		Error("invalid log level %q", level)
	}
	lctx := logging.DefaultContext()
	for _, realm := range []string{"strata", "engine", "procedure", "procedures", "dataset", "server", "api", "healthz"} {
		lctx.AddRule(logging.NewConditionRule(l, logging.NewRealmPrefix(realm)))
	}

	opts := []engine.Option{engine.WithName(name)}
	if artifacts != "" {
		fs, err := projectionfs.New(osfs.OsFs, artifacts)
		if err != nil {
			Error("cannot use artifact directory %q: %s", artifacts, err.Error())
		}
		opts = append(opts, engine.WithArtifacts(fs))
	}
	eng := engine.New(opts...)

	if spec != "" {
		if err := bootstrap(eng, spec); err != nil {
			Error("cannot apply engine spec %q: %s", spec, err.Error())
		}
	}

	srv := server.NewServer(port, 20*time.Second)
	api.New(eng, "/v1").RegisterHandler(srv)
	server.NewDirectoryHandler(eng.Artifacts(), "/artifacts").RegisterHandler(srv)
	srv.Handle("/healthz", http.HandlerFunc(healthz.Healthz))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := service.New(ctx)
	reg.Add(newHeartbeat(30 * time.Second))
	reg.Add(srv)

	err = reg.Start()
	if err != nil {
		Error("cannot start services: %s", err.Error())
	}
	log.Info("engine {{name}} listening on port {{port}}", "name", name, "port", port)
	reg.Wait()
}
