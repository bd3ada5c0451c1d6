// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Runner is anything with a context-bound Serve loop. The gateway hub,
// broadcast fabric, video FSM, player port, and token watcher all
// satisfy it.
type Runner interface {
	Serve(ctx context.Context) error
}

// RunnerFunc adapts a bare function to Runner.
type RunnerFunc func(ctx context.Context) error

// Serve calls f.
func (f RunnerFunc) Serve(ctx context.Context) error { return f(ctx) }

// Named wraps a Runner with a stable name for suture's event log.
type Named struct {
	name   string
	runner Runner
}

// Name builds a named supervised service.
func Name(name string, runner Runner) *Named {
	return &Named{name: name, runner: runner}
}

// Serve implements suture.Service.
func (n *Named) Serve(ctx context.Context) error {
	return n.runner.Serve(ctx)
}

// String implements fmt.Stringer for supervision logs.
func (n *Named) String() string {
	return n.name
}

// HTTPService adapts http.Server's blocking ListenAndServe to a
// supervised, context-aware Serve with graceful shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps the server.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer.
func (s *HTTPService) String() string {
	return "http-server"
}
