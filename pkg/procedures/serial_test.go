package procedures_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/procedures"
	"github.com/stratadb/strata/pkg/runtime"
)

var _ = Describe("Serial", func() {
	var eng engine.Engine

	BeforeEach(func() {
		eng = newEngine()
	})

	pipeline := func(params map[string]any) procedure.Procedure {
		obj, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_SERIAL, "pipeline", runtime.MustValue(params)), nil)
		ExpectWithOffset(1, err).To(Succeed())
		return obj.(procedure.Procedure)
	}

	Context("composition", func() {
		It("runs steps in order with overlaid common parameters", func() {
			pipeline(map[string]any{
				"common": map[string]any{"values": map[string]any{"x": 1}},
				"steps": []any{
					map[string]any{"kind": TYPE_COLLECT, "name": "a"},
					map[string]any{"kind": TYPE_COLLECT, "name": "b",
						"params": map[string]any{"values": map[string]any{"y": 2}}},
				},
			})

			r, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1"}, nil)
			Expect(err).To(Succeed())
			Expect(r.Results.Data()).To(Equal(map[string]any{
				"steps": []any{
					map[string]any{"name": "a", "results": map[string]any{"values": map[string]any{"x": 1.0}}},
					map[string]any{"name": "b", "results": map[string]any{"values": map[string]any{"x": 1.0, "y": 2.0}}},
				},
			}))
		})

		It("applies run parameters to the common block", func() {
			pipeline(map[string]any{
				"common": map[string]any{"values": map[string]any{"x": 1}},
				"steps": []any{
					map[string]any{"kind": TYPE_COLLECT, "name": "a"},
				},
			})

			r, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1",
				Params: runtime.MustValue(map[string]any{"common": map[string]any{"values": map[string]any{"z": 9}}})}, nil)
			Expect(err).To(Succeed())
			Expect(r.Results.Data()).To(Equal(map[string]any{
				"steps": []any{
					map[string]any{"name": "a", "results": map[string]any{"values": map[string]any{"x": 1.0, "z": 9.0}}},
				},
			}))
		})

		It("lets step parameters win over run overrides", func() {
			pipeline(map[string]any{
				"steps": []any{
					map[string]any{"kind": TYPE_COLLECT, "name": "a",
						"params": map[string]any{"values": map[string]any{"x": 5}}},
				},
			})

			r, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1",
				Params: runtime.MustValue(map[string]any{"common": map[string]any{"values": map[string]any{"x": 9}}})}, nil)
			Expect(err).To(Succeed())
			Expect(r.Results.Data()).To(Equal(map[string]any{
				"steps": []any{
					map[string]any{"name": "a", "results": map[string]any{"values": map[string]any{"x": 5.0}}},
				},
			}))
		})

		It("supports nested composites", func() {
			pipeline(map[string]any{
				"steps": []any{
					map[string]any{"kind": procedures.TYPE_SERIAL, "name": "sub", "params": map[string]any{
						"common": map[string]any{"values": map[string]any{"k": 7}},
						"steps": []any{
							map[string]any{"kind": TYPE_COLLECT, "name": "inner"},
						},
					}},
				},
			})

			r, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1"}, nil)
			Expect(err).To(Succeed())
			Expect(r.Results.Data()).To(Equal(map[string]any{
				"steps": []any{
					map[string]any{"name": "sub", "results": map[string]any{
						"steps": []any{
							map[string]any{"name": "inner", "results": map[string]any{"values": map[string]any{"k": 7.0}}},
						},
					}},
				},
			}))
		})
	})

	Context("failure", func() {
		It("aborts at the first failing step without a run record", func() {
			p := pipeline(map[string]any{
				"steps": []any{
					map[string]any{"kind": TYPE_COLLECT, "name": "a"},
					map[string]any{"kind": TYPE_COLLECT, "name": "bad",
						"params": map[string]any{"fail": true}},
					map[string]any{"kind": TYPE_COLLECT, "name": "c"},
				},
			})

			_, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1"}, nil)
			Expect(err).To(MatchError(`run "r1" of procedure "pipeline" failed: step "bad" failed: told to fail`))
			Expect(p.Runs().Len()).To(Equal(0))
		})

		It("fails construction for a malformed step", func() {
			_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_SERIAL, "pipeline",
				runtime.MustValue(map[string]any{
					"steps": []any{
						map[string]any{"kind": "nope"},
					},
				})), nil)
			Expect(err).To(MatchError(`cannot create procedure kind "serial": step "step0": unknown kind: procedure "nope"`))
			Expect(eng.Names(entity.PROCEDURES)).To(BeEmpty())
		})

		It("rejects duplicate step names", func() {
			_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_SERIAL, "pipeline",
				runtime.MustValue(map[string]any{
					"steps": []any{
						map[string]any{"kind": TYPE_COLLECT, "name": "a"},
						map[string]any{"kind": TYPE_COLLECT, "name": "a"},
					},
				})), nil)
			Expect(err).To(MatchError(`invalid configuration for procedure kind "serial": duplicate step "a"`))
		})

		It("rejects steps without a kind", func() {
			_, err := eng.Construct(entity.PROCEDURES, runtime.NewConfig(procedures.TYPE_SERIAL, "pipeline",
				runtime.MustValue(map[string]any{
					"steps": []any{
						map[string]any{"name": "a"},
					},
				})), nil)
			Expect(err).To(MatchError(`invalid configuration for procedure kind "serial": no kind given for step "a"`))
		})
	})

	Context("progress", func() {
		It("annotates progress with the step name", func() {
			pipeline(map[string]any{
				"steps": []any{
					map[string]any{"kind": TYPE_COLLECT, "name": "a"},
				},
			})

			var lock sync.Mutex
			var infos []any
			progress := func(info runtime.Value) bool {
				lock.Lock()
				defer lock.Unlock()
				infos = append(infos, info.Data())
				return true
			}

			_, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1"}, progress)
			Expect(err).To(Succeed())
			Expect(infos).To(Equal([]any{
				map[string]any{"step": "a", "event": "start"},
				map[string]any{"step": "a", "phase": "collect"},
			}))
		})

		It("passes non mapping progress values through", func() {
			pipeline(map[string]any{
				"steps": []any{
					map[string]any{"kind": TYPE_COLLECT, "name": "a",
						"params": map[string]any{"announce": "halfway"}},
				},
			})

			var lock sync.Mutex
			var infos []any
			progress := func(info runtime.Value) bool {
				lock.Lock()
				defer lock.Unlock()
				infos = append(infos, info.Data())
				return true
			}

			_, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1"}, progress)
			Expect(err).To(Succeed())
			Expect(infos).To(Equal([]any{
				map[string]any{"step": "a", "event": "start"},
				"halfway",
				map[string]any{"step": "a", "phase": "collect"},
			}))
		})

		It("cancels before the first step", func() {
			p := pipeline(map[string]any{
				"steps": []any{
					map[string]any{"kind": TYPE_COLLECT, "name": "a"},
				},
			})

			_, err := eng.Run("pipeline", procedure.RunConfig{ID: "r1"},
				func(info runtime.Value) bool { return false })
			Expect(err).To(MatchError(`run "r1" of procedure "pipeline" failed: canceled at step "a"`))
			Expect(p.Runs().Len()).To(Equal(0))
		})
	})

	It("aggregates step statuses", func() {
		p := pipeline(map[string]any{
			"common": map[string]any{"values": map[string]any{"x": 1}},
			"steps": []any{
				map[string]any{"kind": TYPE_COLLECT, "name": "a"},
			},
		})

		Expect(p.GetStatus().Data()).To(Equal(map[string]any{
			"steps": []any{
				map[string]any{"name": "a", "kind": TYPE_COLLECT, "status": map[string]any{"values": map[string]any{"x": 1.0}}},
			},
		}))
	})
})
