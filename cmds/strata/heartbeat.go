package main

import (
	"context"
	"sync"
	"time"

	"github.com/stratadb/strata/pkg/healthz"
	"github.com/stratadb/strata/pkg/service"
)

// heartbeat keeps the daemon liveness check fresh as long as the
// process is able to schedule its ticker.
type heartbeat struct {
	key    string
	period time.Duration
	done   service.Syncher
}

var _ service.Service = (*heartbeat)(nil)

func newHeartbeat(period time.Duration) *heartbeat {
	return &heartbeat{key: "daemon", period: period}
}

func (h *heartbeat) Start(ctx context.Context) (service.Syncher, service.Syncher, error) {
	healthz.Start(h.key, h.period)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	done := service.Sync(wg)
	h.done = done

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(h.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				healthz.End(h.key)
				return
			case <-ticker.C:
				healthz.Tick(h.key)
			}
		}
	}()
	return nil, done, nil
}

func (h *heartbeat) Wait() error {
	if h.done == nil {
		return nil
	}
	return h.done.Wait()
}
