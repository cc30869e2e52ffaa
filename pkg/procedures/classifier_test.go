package procedures_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/procedures"
	"github.com/stratadb/strata/pkg/runtime"
)

var _ = Describe("ClassifierTrain", func() {
	var eng engine.Engine

	BeforeEach(func() {
		eng = newEngine()
		_, err := eng.Construct(entity.DATASETS, runtime.NewConfig("tabular", "train",
			runtime.MustValue(map[string]any{
				"rows": []any{
					map[string]any{"name": "r1", "cells": map[string]any{"x": 1, "y": 2, "label": "a"}},
					map[string]any{"name": "r2", "cells": map[string]any{"x": 3, "y": 4, "label": "a"}},
					map[string]any{"name": "r3", "cells": map[string]any{"x": 5, "y": 6, "label": "b"}},
				},
			})), nil)
		Expect(err).To(Succeed())
	})

	trainer := func(params map[string]any) {
		if params["trainingData"] == nil {
			params["trainingData"] = "SELECT {x, y} AS features, label AS label FROM train"
		}
		if params["modelFileUrl"] == nil {
			params["modelFileUrl"] = "/models/cls.json"
		}
		_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_CLASSIFIER_TRAIN, "cls", runtime.MustValue(params)), nil)
		ExpectWithOffset(1, err).To(Succeed())
	}

	It("computes per label centroids", func() {
		trainer(map[string]any{})

		r, err := eng.Run("cls", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(Succeed())

		counts, ok := r.Results.Field("labelCounts")
		Expect(ok).To(BeTrue())
		Expect(counts.Data()).To(Equal(map[string]any{"a": 2.0, "b": 1.0}))
		features, _ := r.Results.Field("features")
		Expect(features.Data()).To(Equal([]any{"x", "y"}))
		digest, _ := r.Results.Field("modelDigest")
		Expect(digest.Data()).NotTo(BeEmpty())

		Expect(r.Details.Data()).To(Equal(map[string]any{
			"centroids": map[string]any{
				"a": []any{2.0, 3.0},
				"b": []any{5.0, 6.0},
			},
		}))
	})

	It("ignores additional training columns", func() {
		trainer(map[string]any{
			"trainingData": "SELECT {x, y} AS features, label AS label, x FROM train",
		})

		r, err := eng.Run("cls", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(Succeed())
		features, _ := r.Results.Field("features")
		Expect(features.Data()).To(Equal([]any{"x", "y"}))
		counts, _ := r.Results.Field("labelCounts")
		Expect(counts.Data()).To(Equal(map[string]any{"a": 2.0, "b": 1.0}))
	})

	It("stores the model artifact", func() {
		trainer(map[string]any{})

		_, err := eng.Run("cls", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(Succeed())

		data, err := vfs.ReadFile(eng.Artifacts(), "/models/cls.json")
		Expect(err).To(Succeed())
		var m procedures.CentroidModel
		Expect(json.Unmarshal(data, &m)).To(Succeed())
		Expect(m.Labels).To(Equal([]string{"a", "b"}))
		Expect(m.Features).To(Equal([]string{"x", "y"}))
		Expect(m.Centroids["a"]).To(Equal([]float64{2, 3}))
		Expect(m.Counts["b"]).To(Equal(1))
	})

	It("fails for rows without a label", func() {
		_, err := eng.Construct(entity.DATASETS, runtime.NewConfig("tabular", "bare",
			runtime.MustValue(map[string]any{
				"rows": []any{
					map[string]any{"name": "r1", "cells": map[string]any{"x": 1}},
				},
			})), nil)
		Expect(err).To(Succeed())
		trainer(map[string]any{
			"trainingData": "SELECT {x} AS features, label AS label FROM bare",
		})

		_, err = eng.Run("cls", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(MatchError(`run "r1" of procedure "cls" failed: row "r1" has no label`))
	})

	It("fails for non numeric features", func() {
		_, err := eng.Construct(entity.DATASETS, runtime.NewConfig("tabular", "mixed",
			runtime.MustValue(map[string]any{
				"rows": []any{
					map[string]any{"name": "r1", "cells": map[string]any{"x": "nope", "label": "a"}},
				},
			})), nil)
		Expect(err).To(Succeed())
		trainer(map[string]any{
			"trainingData": "SELECT {x} AS features, label AS label FROM mixed",
		})

		_, err = eng.Run("cls", procedure.RunConfig{ID: "r1"}, nil)
		Expect(err).To(MatchError(`run "r1" of procedure "cls" failed: feature "x" of row "r1" is not numeric`))
	})

	It("cancels after aggregation", func() {
		trainer(map[string]any{})

		_, err := eng.Run("cls", procedure.RunConfig{ID: "r1"},
			func(info runtime.Value) bool { return false })
		Expect(err).To(MatchError(`run "r1" of procedure "cls" failed: canceled`))
	})

	Context("validation", func() {
		construct := func(params map[string]any) error {
			_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_CLASSIFIER_TRAIN, "cls", runtime.MustValue(params)), nil)
			return err
		}

		It("requires a training query", func() {
			Expect(construct(map[string]any{"modelFileUrl": "/models/cls.json"})).To(
				MatchError(`invalid configuration for procedure kind "classifier.train": a training query must be given`))
		})

		It("requires a model file", func() {
			Expect(construct(map[string]any{"trainingData": "SELECT {x} AS features, label AS label FROM train"})).To(
				MatchError(`invalid configuration for procedure kind "classifier.train": a model file must be given`))
		})

		It("requires features and label columns", func() {
			Expect(construct(map[string]any{"trainingData": "SELECT * FROM train", "modelFileUrl": "/models/cls.json"})).To(
				MatchError(`invalid configuration for procedure kind "classifier.train": select list in trainingData must name a features and a label column: "SELECT * FROM train"`))
		})

		It("rejects an incomplete select list", func() {
			Expect(construct(map[string]any{"trainingData": "SELECT {x} AS features FROM train", "modelFileUrl": "/models/cls.json"})).To(
				MatchError(`invalid configuration for procedure kind "classifier.train": select list in trainingData must name a features and a label column: "SELECT {x} AS features FROM train"`))
		})
	})
})
