// Package app implements the Alarm Clock application instance driven by the
// supervisor.
//
// An App owns the status API server and, when enabled, the Prometheus metrics
// server. Its lifecycle is uninitialized → running → tearing-down → terminated.
// Only Destroy moves it out of running.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/alarmclock/internal/logger"
	"github.com/marmos91/alarmclock/pkg/app/api"
	"github.com/marmos91/alarmclock/pkg/config"
	"github.com/marmos91/alarmclock/pkg/metrics"
)

// State is the lifecycle state of an App.
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateTearingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateTearingDown:
		return "tearing-down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options configures New.
type Options struct {
	// InstanceID identifies this run. A random UUID is generated when empty.
	InstanceID string

	// CacheDir is the configured cache directory, reported by the status API.
	CacheDir string

	// CacheUsage measures the cache directory for the status API. Optional.
	CacheUsage api.CacheUsageFunc

	// BindHost is the interface the servers listen on. Empty means all interfaces.
	BindHost string

	API     config.APIConfig
	Metrics config.MetricsConfig
}

type server struct {
	name     string
	srv      *http.Server
	listener net.Listener
}

// App is the running application instance.
type App struct {
	id        string
	cacheDir  string
	startedAt time.Time

	// logCtx carries the instance LogContext for every log line.
	logCtx context.Context

	state atomic.Int32

	servers []*server
	group   *errgroup.Group

	faults    chan error
	faultOnce sync.Once

	destroyOnce sync.Once
	destroyErr  error
}

// New binds the configured listeners and starts serving. It either returns a
// running App or an error with every listener already released.
func New(ctx context.Context, opts Options) (*App, error) {
	id := opts.InstanceID
	if id == "" {
		id = uuid.NewString()
	}

	lc := logger.NewLogContext(id).WithComponent("app")
	baseCtx := logger.WithContext(context.WithoutCancel(ctx), lc)

	a := &App{
		id:       id,
		cacheDir: opts.CacheDir,
		logCtx:   baseCtx,
		faults:   make(chan error, 1),
	}

	if opts.API.Enabled {
		router := api.NewRouter(a, opts.CacheUsage)
		if err := a.listen(baseCtx, "api", opts.BindHost, opts.API.Port, router, opts.API); err != nil {
			return nil, err
		}
	}

	if opts.Metrics.Enabled {
		r := chi.NewRouter()
		r.Handle("/metrics", metrics.Handler())
		if err := a.listen(baseCtx, "metrics", opts.BindHost, opts.Metrics.Port, r, config.APIConfig{}); err != nil {
			a.closeListeners()
			return nil, err
		}
	}

	a.startedAt = time.Now()
	a.group = new(errgroup.Group)
	for _, s := range a.servers {
		a.serve(s)
	}

	a.state.Store(int32(StateRunning))
	logger.InfoCtx(baseCtx, "Application running", logger.KeyPath, opts.CacheDir)

	return a, nil
}

func (a *App) listen(baseCtx context.Context, name, host string, port int, h http.Handler, timeouts config.APIConfig) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for %s server on %s: %w", name, addr, err)
	}

	a.servers = append(a.servers, &server{
		name:     name,
		listener: ln,
		srv: &http.Server{
			Handler:      h,
			ReadTimeout:  timeouts.ReadTimeout,
			WriteTimeout: timeouts.WriteTimeout,
			IdleTimeout:  timeouts.IdleTimeout,
			BaseContext:  func(net.Listener) context.Context { return baseCtx },
		},
	})
	return nil
}

func (a *App) closeListeners() {
	for _, s := range a.servers {
		_ = s.listener.Close()
	}
}

func (a *App) serve(s *server) {
	logger.InfoCtx(a.logCtx, "Server listening", "server", s.name, logger.KeyPort, portOf(s.listener))

	a.group.Go(func() error {
		err := s.srv.Serve(s.listener)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		err = fmt.Errorf("%s server failed: %w", s.name, err)
		if a.State() == StateRunning {
			// Reported once through Faults; teardown itself is unaffected.
			a.reportFault(err)
			return nil
		}
		return err
	})
}

// reportFault delivers the first unexpected error on the fault channel.
func (a *App) reportFault(err error) {
	a.faultOnce.Do(func() {
		logger.ErrorCtx(a.logCtx, "Application fault", logger.KeyError, err)
		a.faults <- err
	})
}

// Faults delivers at most one unrecoverable error.
func (a *App) Faults() <-chan error {
	return a.faults
}

// Destroy shuts both servers down within ctx and waits for them to exit.
// It is safe to call more than once; later calls return the first result.
func (a *App) Destroy(ctx context.Context) error {
	a.destroyOnce.Do(func() {
		a.destroyErr = a.destroy(ctx)
	})
	return a.destroyErr
}

func (a *App) destroy(ctx context.Context) error {
	a.state.Store(int32(StateTearingDown))
	logger.DebugCtx(a.logCtx, "Application tearing down")

	var errs []error
	for _, s := range a.servers {
		if err := s.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server shutdown: %w", s.name, err))
			_ = s.srv.Close()
		}
	}

	waited := make(chan error, 1)
	go func() { waited <- a.group.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			errs = append(errs, err)
		}
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for servers: %w", ctx.Err()))
	}

	a.state.Store(int32(StateTerminated))
	logger.DebugCtx(a.logCtx, "Application terminated")

	return errors.Join(errs...)
}

// InstanceID returns the id generated for this run.
func (a *App) InstanceID() string {
	return a.id
}

// State returns the current lifecycle state.
func (a *App) State() State {
	return State(a.state.Load())
}

// Snapshot implements api.StatusProvider.
func (a *App) Snapshot() api.Snapshot {
	state := a.State()
	return api.Snapshot{
		InstanceID: a.id,
		State:      state.String(),
		Running:    state == StateRunning,
		StartedAt:  a.startedAt,
		CacheDir:   a.cacheDir,
	}
}

// Addr returns the listen address of the named server ("api" or "metrics"),
// or "" when it is not enabled.
func (a *App) Addr(name string) string {
	for _, s := range a.servers {
		if s.name == name {
			return s.listener.Addr().String()
		}
	}
	return ""
}

func portOf(ln net.Listener) int {
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
