package datasets_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/stratadb/strata/pkg/testutils"

	"github.com/stratadb/strata/pkg/dataset"
	"github.com/stratadb/strata/pkg/datasets"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/sql"
)

var _ = Describe("Tabular Dataset", func() {
	construct := func(params ...runtime.Value) dataset.Dataset {
		return Must(dataset.Construct(nil, runtime.NewConfig(datasets.TYPE_TABULAR, "data", params...), nil))
	}

	It("is registered", func() {
		Expect(dataset.Kinds().HasType(datasets.TYPE_TABULAR)).To(BeTrue())
	})

	It("creates an empty dataset", func() {
		d := construct()
		Expect(d.GetName()).To(Equal("data"))
		Expect(d.GetKind()).To(Equal("dataset"))
		Expect(d.RowCount()).To(Equal(0))
		Expect(d.CommitHash()).To(BeEmpty())
	})

	It("seeds rows from the configuration", func() {
		d := construct(runtime.MustValue(map[string]any{
			"rows": []any{
				map[string]any{"name": "a", "cells": map[string]any{"x": 1}},
				map[string]any{"cells": map[string]any{"x": 2}},
			},
		}))
		Expect(d.RowCount()).To(Equal(2))
		rows := d.Rows()
		Expect(rows[0].Name).To(Equal("a"))
		Expect(rows[1].Name).To(Equal("1"))
		Expect(rows[0].Cells).To(Equal(sql.Row{"x": 1.0}))
		Expect(d.CommitHash()).NotTo(BeEmpty())
	})

	It("rejects unknown configuration fields", func() {
		_, err := dataset.Construct(nil, runtime.NewConfig(datasets.TYPE_TABULAR, "data", runtime.MustValue(map[string]any{"bogus": true})), nil)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("bogus"))
	})

	Context("appending", func() {
		It("keeps rows in append order", func() {
			d := construct()
			MustBeSuccessful(d.AppendRow("b", sql.Row{"x": 1}))
			MustBeSuccessful(d.AppendRow("a", sql.Row{"x": 2}))
			names := []string{}
			for _, r := range d.Rows() {
				names = append(names, r.Name)
			}
			Expect(names).To(Equal([]string{"b", "a"}))
		})

		It("rejects a duplicate row name", func() {
			d := construct()
			MustBeSuccessful(d.AppendRow("a", sql.Row{"x": 1}))
			err := d.AppendRow("a", sql.Row{"x": 2})
			Expect(err).To(MatchError(entity.ErrAlreadyExists))
			Expect(err.Error()).To(Equal(`entity already exists: row "a"`))
			Expect(d.RowCount()).To(Equal(1))
		})

		It("normalizes cell values", func() {
			d := construct()
			MustBeSuccessful(d.AppendRow("a", sql.Row{"i": 1, "f": float32(2), "s": "x"}))
			Expect(d.Rows()[0].Cells).To(Equal(sql.Row{"i": 1.0, "f": 2.0, "s": "x"}))
		})

		It("isolates its rows from the caller", func() {
			d := construct()
			cells := sql.Row{"x": 1}
			MustBeSuccessful(d.AppendRow("a", cells))
			cells["x"] = 99

			rows := d.Rows()
			rows[0].Cells["x"] = 42
			Expect(d.Rows()[0].Cells).To(Equal(sql.Row{"x": 1.0}))
		})
	})

	Context("committing", func() {
		It("hashes the committed content", func() {
			d := construct()
			MustBeSuccessful(d.AppendRow("a", sql.Row{"x": 1}))
			MustBeSuccessful(d.Commit())
			Expect(d.CommitHash()).NotTo(BeEmpty())
		})

		It("hashes equal content identically", func() {
			a := construct()
			MustBeSuccessful(a.AppendRow("a", sql.Row{"x": 1, "y": 2}))
			MustBeSuccessful(a.Commit())

			b := construct()
			MustBeSuccessful(b.AppendRow("a", sql.Row{"y": 2, "x": 1}))
			MustBeSuccessful(b.Commit())

			Expect(a.CommitHash()).To(Equal(b.CommitHash()))
		})

		It("changes the hash with the content", func() {
			d := construct()
			MustBeSuccessful(d.AppendRow("a", sql.Row{"x": 1}))
			MustBeSuccessful(d.Commit())
			first := d.CommitHash()

			MustBeSuccessful(d.AppendRow("b", sql.Row{"x": 2}))
			MustBeSuccessful(d.Commit())
			Expect(d.CommitHash()).NotTo(Equal(first))
		})
	})

	Context("status", func() {
		It("reports row and column counts", func() {
			d := construct()
			MustBeSuccessful(d.AppendRow("a", sql.Row{"x": 1, "y": 2}))
			MustBeSuccessful(d.AppendRow("b", sql.Row{"x": 3}))
			Expect(d.GetStatus().Data()).To(Equal(map[string]any{
				"rowCount":    2.0,
				"columnCount": 2.0,
			}))
		})

		It("reports the commit hash", func() {
			d := construct()
			MustBeSuccessful(d.AppendRow("a", sql.Row{"x": 1}))
			MustBeSuccessful(d.Commit())
			hash, ok := d.GetStatus().Field("commitHash")
			Expect(ok).To(BeTrue())
			Expect(hash.Data()).To(Equal(d.CommitHash()))
		})
	})
})
