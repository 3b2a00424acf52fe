package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/alarmclock/internal/logger"
	"github.com/marmos91/alarmclock/internal/telemetry"
	"github.com/marmos91/alarmclock/pkg/metrics"
)

// DefaultShutdownTimeout is the default deadline for application teardown.
const DefaultShutdownTimeout = 30 * time.Second

// Application is the lifecycle capability the supervisor drives.
type Application interface {
	// Destroy releases every resource held by the application. It is called at
	// most once, with a context that carries the shutdown deadline.
	Destroy(ctx context.Context) error
}

// Faulter is implemented by applications that can report an unrecoverable
// error. A value received on the channel starts the shutdown sequence.
type Faulter interface {
	Faults() <-chan error
}

// Cleanup is run after teardown settles and before the process exits.
type Cleanup struct {
	Name string
	Fn   func() error
}

// Options configures a Supervisor. The zero value is usable and behaves like
// production: real signals and os.Exit.
type Options struct {
	// ShutdownTimeout bounds Destroy. Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)

	// Signals that start a shutdown. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal

	// Notify and StopNotify register and release the signal channel.
	// Default to signal.Notify and signal.Stop.
	Notify     func(c chan<- os.Signal, sig ...os.Signal)
	StopNotify func(c chan<- os.Signal)

	// Cleanups run in order once teardown has settled. Errors are logged.
	Cleanups []Cleanup

	// Metrics is optional; nil disables collection.
	Metrics metrics.SupervisorMetrics

	// InstanceID tags log lines and spans.
	InstanceID string
}

type trigger struct {
	kind   string
	detail string
	err    error
}

// Supervisor runs the shutdown state machine for one Application.
type Supervisor struct {
	app  Application
	opts Options

	state    atomic.Int32
	exitCode atomic.Int32
	running  atomic.Bool

	manual chan trigger
}

// New creates a supervisor for app.
func New(app Application, opts Options) *Supervisor {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if len(opts.Signals) == 0 {
		opts.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	if opts.Notify == nil {
		opts.Notify = signal.Notify
	}
	if opts.StopNotify == nil {
		opts.StopNotify = signal.Stop
	}

	return &Supervisor{
		app:    app,
		opts:   opts,
		manual: make(chan trigger, 1),
	}
}

// State returns the current shutdown state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// ExitCode returns the exit code recorded so far. It is final once State
// reports StateTerminated.
func (s *Supervisor) ExitCode() int {
	return int(s.exitCode.Load())
}

// Shutdown requests a shutdown as if a termination signal had arrived.
// It never blocks; requests after the first are ignored.
func (s *Supervisor) Shutdown() {
	select {
	case s.manual <- trigger{kind: TriggerManual}:
	default:
	}
}

// Run registers the signal handlers and blocks until the application has been
// torn down and the exit function has been called. In production the exit
// function does not return. Otherwise Run returns the teardown error, if any.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	sigCh := make(chan os.Signal, len(s.opts.Signals))
	s.opts.Notify(sigCh, s.opts.Signals...)
	defer s.opts.StopNotify(sigCh)

	var faults <-chan error
	if f, ok := s.app.(Faulter); ok {
		faults = f.Faults()
	}

	ctx = s.withLogContext(ctx)

	metrics.SetState(s.opts.Metrics, StateIdle.String())
	logger.DebugCtx(ctx, "Supervisor running", logger.KeyTimeout, s.opts.ShutdownTimeout)

	ctxDone := ctx.Done()

	var (
		td       teardown
		results  <-chan error
		deadline <-chan struct{}
	)

	for {
		var t trigger

		select {
		case sig := <-sigCh:
			t = trigger{kind: TriggerSignal, detail: sig.String()}

		case err, ok := <-faults:
			if !ok {
				faults = nil
				continue
			}
			t = trigger{kind: TriggerFault, err: err}

		case <-ctxDone:
			ctxDone = nil
			t = trigger{kind: TriggerContext, err: context.Cause(ctx)}

		case t = <-s.manual:

		case err := <-results:
			return s.finish(td, err, false)

		case <-deadline:
			// Prefer a result that raced the deadline.
			select {
			case err := <-results:
				return s.finish(td, err, false)
			default:
			}
			return s.finish(td, nil, true)
		}

		if !s.state.CompareAndSwap(int32(StateIdle), int32(StateShuttingDown)) {
			logger.DebugCtx(td.ctx, "Ignoring shutdown trigger, shutdown already in progress", t.logArgs()...)
			telemetry.AddEvent(td.ctx, telemetry.EventTriggerIgnored, telemetry.Trigger(t.kind), telemetry.Signal(t.detail))
			metrics.RecordIgnoredTrigger(s.opts.Metrics, t.kind)
			continue
		}

		metrics.RecordTrigger(s.opts.Metrics, t.kind)
		metrics.SetState(s.opts.Metrics, StateShuttingDown.String())

		td = s.beginTeardown(ctx, t)
		telemetry.SetAttributes(td.ctx, telemetry.State(StateShuttingDown.String()))

		if t.kind == TriggerFault {
			s.exitCode.Store(1)
			logger.ErrorCtx(td.ctx, "Application reported an unrecoverable error", logger.KeyError, t.err)
		}

		logger.InfoCtx(td.ctx, "Shutting down alarm-clock", t.logArgs()...)

		results, deadline = s.startTeardown(td.ctx)
	}
}

// withLogContext makes sure log lines carry the instance id exactly once: an
// existing LogContext is kept as is.
func (s *Supervisor) withLogContext(ctx context.Context) context.Context {
	if logger.FromContext(ctx) != nil || s.opts.InstanceID == "" {
		return ctx
	}
	return logger.WithContext(ctx, logger.NewLogContext(s.opts.InstanceID).WithComponent("supervisor"))
}

// teardown tracks the shutdown in progress. ctx carries the span and the
// trace-tagged log context.
type teardown struct {
	ctx     context.Context
	span    trace.Span
	started time.Time
}

func (s *Supervisor) beginTeardown(ctx context.Context, t trigger) teardown {
	spanCtx, span := telemetry.StartTeardownSpan(ctx, t.kind,
		telemetry.InstanceID(s.opts.InstanceID),
		telemetry.Signal(t.detail),
		telemetry.TimeoutMs(s.opts.ShutdownTimeout.Milliseconds()),
	)
	return teardown{
		ctx:     telemetry.WithLogTrace(spanCtx),
		span:    span,
		started: time.Now(),
	}
}

// startTeardown runs Destroy on its own goroutine. The returned deadline
// channel closes when the shutdown timeout expires.
func (s *Supervisor) startTeardown(parent context.Context) (<-chan error, <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.opts.ShutdownTimeout)

	results := make(chan error, 1)
	go func() {
		defer cancel()
		results <- s.destroy(ctx)
	}()

	return results, ctx.Done()
}

func (s *Supervisor) destroy(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.app.Destroy(ctx)
}

// finish records the outcome, runs cleanups and exits. timedOut means the
// deadline passed before Destroy returned.
func (s *Supervisor) finish(td teardown, err error, timedOut bool) error {
	elapsed := time.Since(td.started)

	var (
		outcome string
		result  error
	)

	switch {
	case timedOut:
		outcome = OutcomeTimeout
		result = fmt.Errorf("%w after %s", ErrTeardownTimeout, s.opts.ShutdownTimeout)
		s.exitCode.Store(1)
		logger.ErrorCtx(td.ctx, "Failed to stop alarm-clock", logger.KeyError, result, logger.KeyTimeout, s.opts.ShutdownTimeout)

	case err != nil:
		outcome = OutcomeFailure
		result = fmt.Errorf("%w: %w", ErrTeardown, err)
		s.exitCode.Store(1)
		logger.ErrorCtx(td.ctx, "Failed to stop alarm-clock", logger.KeyError, err)

	default:
		outcome = OutcomeSuccess
		logger.InfoCtx(td.ctx, "Stopped.", logger.KeyDurationMs, float64(elapsed.Microseconds())/1000)
	}

	code := s.ExitCode()
	metrics.ObserveTeardown(s.opts.Metrics, outcome, elapsed)

	s.state.CompareAndSwap(int32(StateShuttingDown), int32(StateTerminated))
	metrics.SetState(s.opts.Metrics, StateTerminated.String())
	endTeardownSpan(td, outcome, code, result)

	logger.DebugCtx(td.ctx, "Exiting", logger.KeyExitCode, code)
	s.runCleanups()
	s.opts.Exit(code)

	return result
}

func (s *Supervisor) runCleanups() {
	for _, c := range s.opts.Cleanups {
		if c.Fn == nil {
			continue
		}
		if err := c.Fn(); err != nil {
			logger.Warn("Cleanup failed", logger.KeyComponent, c.Name, logger.KeyError, err)
		}
	}
}

func (t trigger) logArgs() []any {
	args := []any{logger.KeyTrigger, t.kind}
	if t.detail != "" {
		args = append(args, logger.KeySignal, t.detail)
	}
	return args
}

func endTeardownSpan(td teardown, outcome string, code int, err error) {
	telemetry.SetAttributes(td.ctx,
		telemetry.State(StateTerminated.String()),
		telemetry.Outcome(outcome),
		telemetry.ExitCode(code),
	)
	telemetry.RecordError(td.ctx, err)
	td.span.End()
}
