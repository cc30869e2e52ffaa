package functions_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/stratadb/strata/pkg/testutils"

	"github.com/stratadb/strata/pkg/function"
	"github.com/stratadb/strata/pkg/functions"
	"github.com/stratadb/strata/pkg/runtime"
)

var _ = Describe("Embed Apply", func() {
	model := &functions.EmbedModel{
		InputColumns: []string{"x", "y"},
		Mean:         []float64{1, 2},
		Projection:   [][]float64{{1, 0}, {0, 1}},
	}

	Context("model", func() {
		It("embeds a vector", func() {
			Expect(model.OutputDimensions()).To(Equal(2))
			Expect(model.Embed([]float64{2, 3})).To(Equal([]float64{1, 1}))
		})

		It("mixes dimensions", func() {
			m := &functions.EmbedModel{
				InputColumns: []string{"x", "y"},
				Mean:         []float64{0, 0},
				Projection:   [][]float64{{2}, {1}},
			}
			Expect(m.Embed([]float64{3, 4})).To(Equal([]float64{10}))
		})

		It("stores and loads a model", func() {
			fs := TestFileSystem()
			digest := Must(functions.StoreModel(fs, "models/embed.json", model))
			Expect(digest).NotTo(BeEmpty())

			loaded := Must(functions.LoadModel(fs, "models/embed.json"))
			Expect(loaded).To(Equal(model))
		})

		It("rejects an inconsistent model", func() {
			fs := FileSystemWith(map[string]string{
				"models/bad.json": `{"inputColumns":["x"],"mean":[],"projection":[]}`,
			})
			_, err := functions.LoadModel(fs, "models/bad.json")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(Equal(`cannot load model "models/bad.json": inconsistent dimensions`))
		})

		It("fails for a missing model", func() {
			_, err := functions.LoadModel(TestFileSystem(), "models/none.json")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(`cannot load model "models/none.json"`))
		})
	})

	Context("function", func() {
		var dir *Directory

		BeforeEach(func() {
			dir = NewDirectory()
			Must(functions.StoreModel(dir.Artifacts(), "models/embed.json", model))
		})

		construct := func() function.Function {
			params := runtime.MustValue(map[string]any{"modelFileUrl": "models/embed.json"})
			return Must(function.Construct(dir, runtime.NewConfig(functions.TYPE_EMBED_APPLY, "f1", params), nil))
		}

		It("is registered", func() {
			Expect(function.Kinds().HasType(functions.TYPE_EMBED_APPLY)).To(BeTrue())
		})

		It("applies the stored model", func() {
			f := construct()
			out := Must(f.Call(runtime.MustValue(map[string]any{"x": 2, "y": 3})))
			Expect(out.Data()).To(Equal(map[string]any{"dim0": 1.0, "dim1": 1.0}))
		})

		It("reports the model shape", func() {
			f := construct()
			Expect(f.GetStatus().Data()).To(Equal(map[string]any{
				"inputColumns":     []any{"x", "y"},
				"outputDimensions": 2.0,
			}))
		})

		It("requires a model file", func() {
			_, err := function.Construct(dir, runtime.NewConfig(functions.TYPE_EMBED_APPLY, "f1"), nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(Equal(`invalid configuration for function kind "embed.apply": a model file must be given`))
		})

		It("fails for a missing model file", func() {
			params := runtime.MustValue(map[string]any{"modelFileUrl": "models/none.json"})
			_, err := function.Construct(dir, runtime.NewConfig(functions.TYPE_EMBED_APPLY, "f1", params), nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("cannot load model"))
		})

		Context("calling", func() {
			It("rejects a scalar input", func() {
				f := construct()
				_, err := f.Call(runtime.MustValue(42))
				Expect(err).To(MatchError("a row object must be given"))
			})

			It("rejects a missing column", func() {
				f := construct()
				_, err := f.Call(runtime.MustValue(map[string]any{"x": 2}))
				Expect(err).To(MatchError(`missing input column "y"`))
			})

			It("rejects a non numeric column", func() {
				f := construct()
				_, err := f.Call(runtime.MustValue(map[string]any{"x": 2, "y": "three"}))
				Expect(err).To(MatchError(`input column "y" is not numeric`))
			})
		})
	})
})
