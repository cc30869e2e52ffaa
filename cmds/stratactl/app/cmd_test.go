package app_test

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	. "github.com/stratadb/strata/pkg/testutils"

	"github.com/stratadb/strata/cmds/stratactl/app"
	"github.com/stratadb/strata/pkg/api"
	"github.com/stratadb/strata/pkg/ctxutil"
	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/server"

	_ "github.com/stratadb/strata/pkg/datasets"
	_ "github.com/stratadb/strata/pkg/functions"
	_ "github.com/stratadb/strata/pkg/procedures"
)

const MANIFEST = `
datasets:
- kind: tabular
  id: train
procedures:
- kind: "null"
  id: noop
`

var _ = Describe("Command Line Client", func() {
	var ctx context.Context
	var eng engine.Engine
	var srv *server.Server
	var addr string

	var cmd *cobra.Command
	var buf *bytes.Buffer

	newcmd := func() {
		buf = bytes.NewBuffer(nil)
		cmd = app.New(FileSystemWith(map[string]string{"spec.yaml": MANIFEST}))
		cmd.SetOut(buf)
	}

	execute := func(args ...string) error {
		cmd.SetArgs(append([]string{"-s", addr}, args...))
		return cmd.Execute()
	}

	BeforeEach(func() {
		ctx = ctxutil.TimeoutContext(context.Background(), 20*time.Second)

		eng = engine.New(engine.WithName("testctl"))
		srv = server.NewServer(0, 10*time.Second)
		api.New(eng, "/v1").RegisterHandler(srv)

		_, _, err := srv.Start(ctx)
		MustBeSuccessful(err)

		_, port := Must2(net.SplitHostPort(srv.Address()))
		addr = fmt.Sprintf("http://localhost:%s", port)

		newcmd()
	})

	AfterEach(func() {
		ctxutil.Cancel(ctx)
		MustBeSuccessful(srv.Wait())
	})

	Context("types", func() {
		It("lists the categories", func() {
			MustBeSuccessful(execute("types"))
			Expect("\n" + buf.String()).To(Equal(`
CATEGORY
datasets
functions
procedures
`))
		})

		It("lists the kinds of a category", func() {
			MustBeSuccessful(execute("types", "procedures"))
			Expect(buf.String()).To(ContainSubstring("NAME"))
			Expect(buf.String()).To(ContainSubstring("classifier.train"))
		})

		It("renders kinds as json", func() {
			MustBeSuccessful(execute("types", "datasets", "-o", "json"))
			Expect(buf.String()).To(ContainSubstring(`"name":"tabular"`))
		})
	})

	Context("apply", func() {
		It("creates the entities of a manifest", func() {
			MustBeSuccessful(execute("apply", "-f", "spec.yaml"))
			Expect("\n" + buf.String()).To(Equal(`
datasets/train: created
procedures/noop: created
`))
			Expect(Must(eng.Names(entity.DATASETS))).To(ConsistOf("train"))
			Expect(Must(eng.Names(entity.PROCEDURES))).To(ConsistOf("noop"))
		})

		It("reads a manifest from stdin", func() {
			cmd.SetIn(bytes.NewBufferString(MANIFEST))
			MustBeSuccessful(execute("apply", "-f", "-"))
			Expect(buf.String()).To(ContainSubstring("datasets/train: created"))
		})

		It("reports failing entities", func() {
			MustBeSuccessful(execute("apply", "-f", "spec.yaml"))

			newcmd()
			errbuf := bytes.NewBuffer(nil)
			cmd.SetErr(errbuf)
			err := execute("apply", "-f", "spec.yaml")
			Expect(err).To(MatchError("apply failed for some entities"))
			Expect(errbuf.String()).To(ContainSubstring(`datasets/train: entity already exists: datasets "train"`))
		})
	})

	Context("with entities", func() {
		BeforeEach(func() {
			Must(eng.Construct(entity.DATASETS, runtime.PolyConfig{Kind: "tabular", ID: "train"}, nil))
			Must(eng.Construct(entity.DATASETS, runtime.PolyConfig{Kind: "tabular", ID: "test"}, nil))
			Must(eng.Construct(entity.PROCEDURES, runtime.PolyConfig{Kind: "null", ID: "noop"}, nil))
		})

		Context("get", func() {
			It("lists the entities of a category", func() {
				MustBeSuccessful(execute("get", "datasets"))
				Expect("\n" + buf.String()).To(Equal(`
NAME  KIND
train tabular
test  tabular
`))
			})

			It("describes an entity", func() {
				MustBeSuccessful(execute("get", "datasets", "train", "-o", "yaml"))
				Expect(buf.String()).To(MatchYAML(`
config:
  kind: tabular
  id: train
  params: null
status:
  rowCount: 0
  columnCount: 0
`))
			})

			It("fails for an unknown entity", func() {
				err := execute("get", "datasets", "nope")
				Expect(err).To(MatchError(`entity not found: datasets "nope"`))
			})
		})

		Context("delete", func() {
			It("deletes entities", func() {
				MustBeSuccessful(execute("delete", "datasets", "train"))
				Expect(buf.String()).To(Equal("datasets/train: deleted\n"))
				Expect(Must(eng.Names(entity.DATASETS))).To(ConsistOf("test"))
			})

			It("deletes all entities of a category", func() {
				MustBeSuccessful(execute("delete", "datasets", "-A"))
				Expect(Must(eng.Names(entity.DATASETS))).To(BeEmpty())
			})

			It("reports unknown entities", func() {
				errbuf := bytes.NewBuffer(nil)
				cmd.SetErr(errbuf)
				err := execute("delete", "datasets", "nope")
				Expect(err).To(MatchError("deletion failed for some entities"))
				Expect(errbuf.String()).To(Equal("datasets/nope: entity not found: datasets \"nope\"\n"))
			})
		})

		Context("run", func() {
			It("executes a run", func() {
				MustBeSuccessful(execute("run", "noop", "-i", "r1"))
				Expect(buf.String()).To(Equal("run \"r1\" of procedure \"noop\" finished\n"))
				Expect(Must(eng.Procedure("noop")).Runs().Len()).To(Equal(1))
			})

			It("executes a run configured from stdin", func() {
				cmd.SetIn(bytes.NewBufferString(`{"id":"r7"}`))
				MustBeSuccessful(execute("run", "noop", "-f", "-"))
				Expect(buf.String()).To(ContainSubstring(`run "r7" of procedure "noop" finished`))
			})

			It("reports run failures", func() {
				err := execute("run", "noop", "-i", "r1", "-f", "nosuchfile")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(`cannot read file "nosuchfile"`))
			})

			It("reports duplicate run ids", func() {
				Must(eng.Run("noop", procedure.RunConfig{ID: "r1"}, nil))
				err := execute("run", "noop", "-i", "r1")
				Expect(err).To(MatchError(`cannot run procedure "noop": run id already used`))
			})
		})

		Context("runs", func() {
			BeforeEach(func() {
				Must(eng.Run("noop", procedure.RunConfig{ID: "r1"}, nil))
			})

			It("lists the recorded runs", func() {
				MustBeSuccessful(execute("runs", "noop"))
				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				Expect(lines).To(HaveLen(2))
				Expect(lines[0]).To(MatchRegexp(`^RUN STARTED +FINISHED$`))
				Expect(lines[1]).To(HavePrefix("r1 "))
			})

			It("describes a run", func() {
				MustBeSuccessful(execute("runs", "noop", "r1"))
				Expect(buf.String()).To(ContainSubstring("id: r1"))
				Expect(buf.String()).To(ContainSubstring("runStarted:"))
			})

			It("reports the run details", func() {
				MustBeSuccessful(execute("runs", "noop", "r1", "--details"))
				Expect(buf.String()).To(Equal("null\n"))
			})

			It("fails for an unknown run", func() {
				err := execute("runs", "noop", "r2")
				Expect(err).To(MatchError(`entity not found: run "r2"`))
			})
		})
	})
})
