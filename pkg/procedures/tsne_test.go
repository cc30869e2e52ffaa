package procedures_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/procedures"
	"github.com/stratadb/strata/pkg/runtime"
)

var _ = Describe("TsneTrain", func() {
	var eng engine.Engine

	// four points on the line t*(2,1), the leading direction is
	// (2,1)/sqrt(5) and the embedding of point t is t*sqrt(5)
	BeforeEach(func() {
		eng = newEngine()
		_, err := eng.Construct(entity.DATASETS, runtime.NewConfig("tabular", "train",
			runtime.MustValue(map[string]any{
				"rows": []any{
					map[string]any{"name": "r1", "cells": map[string]any{"x": 0, "y": 0}},
					map[string]any{"name": "r2", "cells": map[string]any{"x": 2, "y": 1}},
					map[string]any{"name": "r3", "cells": map[string]any{"x": 4, "y": 2}},
					map[string]any{"name": "r4", "cells": map[string]any{"x": 6, "y": 3}},
				},
			})), nil)
		Expect(err).To(Succeed())
	})

	trainer := func(params map[string]any) {
		if params["trainingData"] == nil {
			params["trainingData"] = "SELECT * FROM train"
		}
		if params["output"] == nil {
			params["output"] = map[string]any{"id": "coords"}
		}
		_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_TSNE_TRAIN, "emb", runtime.MustValue(params)), nil)
		ExpectWithOffset(1, err).To(Succeed())
	}

	dim0 := func(name string) float64 {
		ds, err := eng.Dataset("coords")
		ExpectWithOffset(1, err).To(Succeed())
		for _, r := range ds.Rows() {
			if r.Name == name {
				v, ok := r.Cells["dim0"].(float64)
				ExpectWithOffset(1, ok).To(BeTrue())
				return v
			}
		}
		Fail("row not found: " + name)
		return 0
	}

	It("embeds rows along the leading direction", func() {
		trainer(map[string]any{
			"numOutputDimensions": 1,
		})

		r, err := eng.Run("emb", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(Succeed())
		Expect(r.Results.Data()).To(Equal(map[string]any{
			"rowCount":      4.0,
			"columns":       []any{"x", "y"},
			"outputDataset": "coords",
		}))

		s5 := math.Sqrt(5)
		Expect(dim0("r1")).To(BeNumerically("~", -1.5*s5, 1e-9))
		Expect(dim0("r2")).To(BeNumerically("~", -0.5*s5, 1e-9))
		Expect(dim0("r3")).To(BeNumerically("~", 0.5*s5, 1e-9))
		Expect(dim0("r4")).To(BeNumerically("~", 1.5*s5, 1e-9))
	})

	It("restricts the input columns", func() {
		trainer(map[string]any{
			"numOutputDimensions": 1,
			"numInputDimensions":  1,
		})

		r, err := eng.Run("emb", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(Succeed())
		cols, _ := r.Results.Field("columns")
		Expect(cols.Data()).To(Equal([]any{"x"}))
		Expect(dim0("r1")).To(BeNumerically("~", -3, 1e-9))
		Expect(dim0("r4")).To(BeNumerically("~", 3, 1e-9))
	})

	It("stores the model and creates the apply function", func() {
		trainer(map[string]any{
			"numOutputDimensions": 1,
			"modelFileUrl":        "/models/emb.json",
			"functionName":        "embedder",
		})

		r, err := eng.Run("emb", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(Succeed())
		digest, ok := r.Results.Field("modelDigest")
		Expect(ok).To(BeTrue())
		Expect(digest.Data()).NotTo(BeEmpty())

		f, err := eng.Function("embedder")
		Expect(err).To(Succeed())

		// the function reproduces the training embedding and
		// extrapolates to unseen points
		out, err := f.Call(runtime.MustValue(map[string]any{"x": 0, "y": 0}))
		Expect(err).To(Succeed())
		v, _ := out.Field("dim0")
		Expect(v.Data()).To(BeNumerically("~", dim0("r1"), 1e-9))

		out, err = f.Call(runtime.MustValue(map[string]any{"x": 10, "y": 5}))
		Expect(err).To(Succeed())
		v, _ = out.Field("dim0")
		Expect(v.Data()).To(BeNumerically("~", 3.5*math.Sqrt(5), 1e-9))
	})

	It("rejects more output than input dimensions", func() {
		trainer(map[string]any{
			"numOutputDimensions": 3,
		})

		_, err := eng.Run("emb", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(MatchError(`run "r1" of procedure "emb" failed: cannot embed 2 columns into 3 dimensions`))
	})

	It("fails on empty training data", func() {
		_, err := eng.Construct(entity.DATASETS, runtime.NewConfig("tabular", "empty"), nil)
		Expect(err).To(Succeed())
		trainer(map[string]any{
			"trainingData": "SELECT * FROM empty",
		})

		_, err = eng.Run("emb", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(MatchError(`run "r1" of procedure "emb" failed: training data is empty`))
	})

	It("fails without numeric columns", func() {
		_, err := eng.Construct(entity.DATASETS, runtime.NewConfig("tabular", "words",
			runtime.MustValue(map[string]any{
				"rows": []any{
					map[string]any{"name": "r1", "cells": map[string]any{"w": "hello"}},
				},
			})), nil)
		Expect(err).To(Succeed())
		trainer(map[string]any{
			"trainingData": "SELECT * FROM words",
		})

		_, err = eng.Run("emb", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(MatchError(`run "r1" of procedure "emb" failed: training data has no numeric columns`))
	})

	It("cancels between iterations", func() {
		trainer(map[string]any{
			"numOutputDimensions": 1,
		})

		_, err := eng.Run("emb", procedure.RunConfig{ID: "r1"},
			func(info runtime.Value) bool { return false })
		Expect(err).To(MatchError(`run "r1" of procedure "emb" failed: canceled in iteration 1 of dimension 0`))
	})

	Context("validation", func() {
		construct := func(params map[string]any) error {
			_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_TSNE_TRAIN, "emb", runtime.MustValue(params)), nil)
			return err
		}

		It("requires a training query", func() {
			Expect(construct(map[string]any{})).To(
				MatchError(`invalid configuration for procedure kind "tsne.train": a training query must be given`))
		})

		It("rejects grouped training queries", func() {
			Expect(construct(map[string]any{"trainingData": "SELECT * FROM train GROUP BY label"})).To(
				MatchError(`invalid configuration for procedure kind "tsne.train": cannot use a GROUP BY clause in trainingData: "label"`))
		})

		It("rejects computed select columns", func() {
			Expect(construct(map[string]any{"trainingData": "SELECT x + 1 AS d FROM train"})).To(
				MatchError(`invalid configuration for procedure kind "tsne.train": only wildcards and plain column names are accepted in trainingData: "x + 1 AS d"`))
		})

		It("requires a model file for a function", func() {
			Expect(construct(map[string]any{"trainingData": "SELECT * FROM train", "functionName": "embedder"})).To(
				MatchError(`invalid configuration for procedure kind "tsne.train": a function name requires a model file`))
		})

		It("rejects nonsensical dimensions", func() {
			Expect(construct(map[string]any{"trainingData": "SELECT * FROM train", "numOutputDimensions": -1})).To(
				MatchError(`invalid configuration for procedure kind "tsne.train": numOutputDimensions must be positive`))
		})
	})
})
