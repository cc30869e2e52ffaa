package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/stratadb/strata/pkg/service"
)

// Server is an HTTP server together with the request multiplexer
// handlers are registered on. It implements service.Service, so it
// can be managed alongside the other daemon services and is shut
// down by cancelling the start context.
type Server struct {
	*http.Server
	*http.ServeMux

	shutdownTimeout time.Duration

	lock     sync.Mutex
	listener net.Listener
	done     service.Syncher
}

var _ service.Service = (*Server)(nil)

func NewServer(port int, shutdownTimeout time.Duration) *Server {
	mux := http.NewServeMux()
	return &Server{
		Server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		ServeMux:        mux,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start binds the listen address and serves requests until the given
// context is cancelled. The shutdown initiated by the cancellation
// waits up to the configured timeout for pending requests.
func (s *Server) Start(ctx context.Context) (service.Syncher, service.Syncher, error) {
	listener, err := net.Listen("tcp", s.Server.Addr)
	if err != nil {
		return nil, nil, err
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	done := service.Sync(wg)

	s.lock.Lock()
	s.listener = listener
	s.done = done
	s.lock.Unlock()

	go func() {
		defer wg.Done()
		// A graceful shutdown makes Serve return http.ErrServerClosed,
		// which is not a failure. Everything else (bind lost, accept
		// errors) is reported to the waiters.
		err := s.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done.SetError(err)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			log.Error("server shutdown failed", "error", err.Error())
		}
	}()

	log.Info("server listening on {{address}}", "address", listener.Addr().String())
	return nil, done, nil
}

func (s *Server) Wait() error {
	s.lock.Lock()
	done := s.done
	s.lock.Unlock()
	if done == nil {
		return nil
	}
	return done.Wait()
}

// Address reports the effectively bound listen address. It is only
// available after Start and resolves the concrete port when the
// server was created with port 0.
func (s *Server) Address() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
