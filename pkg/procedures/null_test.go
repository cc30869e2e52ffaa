package procedures_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/procedures"
	"github.com/stratadb/strata/pkg/runtime"
)

var _ = Describe("Null", func() {
	var eng engine.Engine

	BeforeEach(func() {
		eng = newEngine()
	})

	It("records a run without any effect", func() {
		obj, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_NULL, "noop"), nil)
		Expect(err).To(Succeed())
		p := obj.(procedure.Procedure)

		r, err := eng.Run("noop", procedure.RunConfig{ID: "first"}, nil)
		Expect(err).To(Succeed())
		Expect(r.Config.ID).To(Equal("first"))
		Expect(r.Finished()).To(BeTrue())
		Expect(r.Results.IsEmpty()).To(BeTrue())
		Expect(p.Runs().Len()).To(Equal(1))
	})

	It("rejects unknown run parameters", func() {
		_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_NULL, "noop"), nil)
		Expect(err).To(Succeed())

		_, err = eng.Run("noop", procedure.RunConfig{ID: "first", Params: runtime.MustValue(map[string]any{"bogus": 1})}, nil)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring(`run "first" of procedure "noop" failed: invalid run configuration`))
		Expect(err.Error()).To(ContainSubstring("bogus"))
	})

	It("runs on creation when configured", func() {
		obj, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_NULL, "noop",
			runtime.MustValue(map[string]any{"runOnCreation": true})), nil)
		Expect(err).To(Succeed())
		Expect(obj.(procedure.Procedure).Runs().Len()).To(Equal(1))
	})
})
