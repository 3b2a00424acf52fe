package supervisor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/alarmclock/internal/logger"
)

// ============================================================================
// Test doubles
// ============================================================================

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	logger.InitWithWriter(buf, "DEBUG", "text", false)
	t.Cleanup(func() { logger.InitWithWriter(os.Stderr, "INFO", "text", false) })
	return buf
}

// fakeSignals replaces signal.Notify so tests can deliver signals directly.
type fakeSignals struct {
	mu         sync.Mutex
	ch         chan<- os.Signal
	registered chan struct{}
	stopped    atomic.Bool
	notified   atomic.Int32
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{registered: make(chan struct{})}
}

func (f *fakeSignals) notify(c chan<- os.Signal, _ ...os.Signal) {
	f.mu.Lock()
	f.ch = c
	f.mu.Unlock()
	f.notified.Add(1)
	close(f.registered)
}

func (f *fakeSignals) stop(chan<- os.Signal) {
	f.stopped.Store(true)
}

func (f *fakeSignals) send(t *testing.T, sig os.Signal) {
	t.Helper()
	select {
	case <-f.registered:
	case <-time.After(2 * time.Second):
		t.Fatal("signal handler was never registered")
	}
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- sig
}

type fakeApp struct {
	calls   atomic.Int32
	destroy func(ctx context.Context) error
}

func (a *fakeApp) Destroy(ctx context.Context) error {
	a.calls.Add(1)
	if a.destroy == nil {
		return nil
	}
	return a.destroy(ctx)
}

type faultingApp struct {
	fakeApp
	faults chan error
}

func (a *faultingApp) Faults() <-chan error {
	return a.faults
}

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
	logs  *syncBuffer
	atLog []string
}

func (e *exitRecorder) exit(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
	if e.logs != nil {
		e.atLog = append(e.atLog, e.logs.String())
	}
}

func (e *exitRecorder) calls() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.codes...)
}

type harness struct {
	sup     *Supervisor
	signals *fakeSignals
	exits   *exitRecorder
	logs    *syncBuffer
	done    chan error
}

func startHarness(t *testing.T, ctx context.Context, app Application, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		signals: newFakeSignals(),
		logs:    captureLogs(t),
		done:    make(chan error, 1),
	}
	h.exits = &exitRecorder{logs: h.logs}

	opts := Options{
		ShutdownTimeout: 2 * time.Second,
		Exit:            h.exits.exit,
		Notify:          h.signals.notify,
		StopNotify:      h.signals.stop,
		InstanceID:      "test-instance",
	}
	if mutate != nil {
		mutate(&opts)
	}

	h.sup = New(app, opts)
	go func() { h.done <- h.sup.Run(ctx) }()

	select {
	case <-h.signals.registered:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not register signal handlers")
	}

	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish")
		return nil
	}
}

// ============================================================================
// Scenarios
// ============================================================================

func TestRun_NoTriggerKeepsRunning(t *testing.T) {
	app := &fakeApp{}
	h := startHarness(t, context.Background(), app, nil)

	select {
	case <-h.done:
		t.Fatal("supervisor exited without a trigger")
	case <-time.After(150 * time.Millisecond):
	}

	assert.Equal(t, StateIdle, h.sup.State())
	assert.Zero(t, app.calls.Load())
	assert.Empty(t, h.exits.calls())

	h.sup.Shutdown()
	require.NoError(t, h.wait(t))
}

func TestRun_InterruptThenCleanTeardown(t *testing.T) {
	app := &fakeApp{}
	h := startHarness(t, context.Background(), app, nil)

	h.signals.send(t, os.Interrupt)
	require.NoError(t, h.wait(t))

	assert.Equal(t, int32(1), app.calls.Load())
	assert.Equal(t, []int{0}, h.exits.calls())
	assert.Equal(t, StateTerminated, h.sup.State())
	assert.Equal(t, 0, h.sup.ExitCode())
	assert.True(t, h.signals.stopped.Load())

	logs := h.logs.String()
	assert.Contains(t, logs, "Shutting down alarm-clock")
	assert.Contains(t, logs, "Stopped.")
	assert.Contains(t, logs, "trigger=signal")
}

func TestRun_TerminateThenFailedTeardown(t *testing.T) {
	cause := errors.New("database refused to close")
	app := &fakeApp{destroy: func(context.Context) error { return cause }}
	h := startHarness(t, context.Background(), app, nil)

	h.signals.send(t, syscall.SIGTERM)
	err := h.wait(t)

	require.ErrorIs(t, err, ErrTeardown)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, []int{1}, h.exits.calls())
	assert.Equal(t, 1, h.sup.ExitCode())

	logs := h.logs.String()
	assert.Contains(t, logs, "Shutting down alarm-clock")
	assert.Contains(t, logs, "[ERROR] Failed to stop alarm-clock")
	assert.Contains(t, logs, "database refused to close")
	assert.NotContains(t, logs, "Stopped.")
}

func TestRun_BothSignalsTearDownOnce(t *testing.T) {
	release := make(chan struct{})
	app := &fakeApp{destroy: func(context.Context) error {
		<-release
		return nil
	}}
	h := startHarness(t, context.Background(), app, nil)

	h.signals.send(t, os.Interrupt)
	h.signals.send(t, syscall.SIGTERM)

	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), "Ignoring shutdown trigger")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateShuttingDown, h.sup.State())

	close(release)
	require.NoError(t, h.wait(t))

	assert.Equal(t, int32(1), app.calls.Load())
	assert.Equal(t, []int{0}, h.exits.calls())
}

func TestRun_RepeatedSignalsAreIdempotent(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8} {
		t.Run(strings.Repeat("s", n), func(t *testing.T) {
			release := make(chan struct{})
			app := &fakeApp{destroy: func(context.Context) error {
				<-release
				return nil
			}}
			h := startHarness(t, context.Background(), app, nil)

			for i := 0; i < n; i++ {
				if i%2 == 0 {
					h.signals.send(t, os.Interrupt)
				} else {
					h.signals.send(t, syscall.SIGTERM)
				}
			}
			// Manual requests after a signal are ignored the same way.
			h.sup.Shutdown()

			close(release)
			require.NoError(t, h.wait(t))

			assert.Equal(t, int32(1), app.calls.Load())
			assert.Len(t, h.exits.calls(), 1)
		})
	}
}

// ============================================================================
// Exit codes and ordering
// ============================================================================

func TestRun_LogOrdering(t *testing.T) {
	app := &fakeApp{}
	h := startHarness(t, context.Background(), app, nil)

	h.signals.send(t, os.Interrupt)
	require.NoError(t, h.wait(t))

	require.Len(t, h.exits.atLog, 1)
	atExit := h.exits.atLog[0]

	begin := strings.Index(atExit, "Shutting down alarm-clock")
	stop := strings.Index(atExit, "Stopped.")
	require.NotEqual(t, -1, begin, "shutdown notice logged before exit")
	require.NotEqual(t, -1, stop, "stopped notice logged before exit")
	assert.Less(t, begin, stop)
}

func TestRun_ExitCodeMapping(t *testing.T) {
	tests := []struct {
		name     string
		destroy  func(context.Context) error
		timeout  time.Duration
		wantCode int
		wantErr  error
	}{
		{
			name:     "success",
			destroy:  func(context.Context) error { return nil },
			wantCode: 0,
		},
		{
			name:     "failure",
			destroy:  func(context.Context) error { return errors.New("boom") },
			wantCode: 1,
			wantErr:  ErrTeardown,
		},
		{
			name:     "panic",
			destroy:  func(context.Context) error { panic("nil map write") },
			wantCode: 1,
			wantErr:  ErrTeardown,
		},
		{
			name: "timeout",
			destroy: func(ctx context.Context) error {
				time.Sleep(time.Second)
				return nil
			},
			timeout:  50 * time.Millisecond,
			wantCode: 1,
			wantErr:  ErrTeardownTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &fakeApp{destroy: tt.destroy}
			h := startHarness(t, context.Background(), app, func(o *Options) {
				if tt.timeout > 0 {
					o.ShutdownTimeout = tt.timeout
				}
			})

			h.sup.Shutdown()
			err := h.wait(t)

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, []int{tt.wantCode}, h.exits.calls())
			assert.Equal(t, StateTerminated, h.sup.State())
		})
	}
}

func TestRun_TimeoutDoesNotWaitForTeardown(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	app := &fakeApp{destroy: func(context.Context) error {
		<-release
		return nil
	}}
	h := startHarness(t, context.Background(), app, func(o *Options) {
		o.ShutdownTimeout = 30 * time.Millisecond
	})

	start := time.Now()
	h.sup.Shutdown()
	err := h.wait(t)

	require.ErrorIs(t, err, ErrTeardownTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []int{1}, h.exits.calls())
	assert.Contains(t, h.logs.String(), "teardown timed out")
}

func TestRun_TeardownContextCarriesDeadline(t *testing.T) {
	var (
		hasDeadline bool
		remaining   time.Duration
	)
	app := &fakeApp{destroy: func(ctx context.Context) error {
		var deadline time.Time
		deadline, hasDeadline = ctx.Deadline()
		remaining = time.Until(deadline)
		return nil
	}}
	h := startHarness(t, context.Background(), app, func(o *Options) {
		o.ShutdownTimeout = 700 * time.Millisecond
	})

	h.sup.Shutdown()
	require.NoError(t, h.wait(t))

	assert.True(t, hasDeadline)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 700*time.Millisecond)
}

func TestRun_DeadlineErrorFromDestroyIsFailure(t *testing.T) {
	app := &fakeApp{destroy: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	h := startHarness(t, context.Background(), app, func(o *Options) {
		o.ShutdownTimeout = 20 * time.Millisecond
	})

	h.sup.Shutdown()
	err := h.wait(t)

	// Either the deadline or the returned error may win; both exit with 1.
	require.Error(t, err)
	assert.Equal(t, []int{1}, h.exits.calls())
}

// ============================================================================
// Other triggers
// ============================================================================

func TestRun_ApplicationFault(t *testing.T) {
	app := &faultingApp{faults: make(chan error, 1)}
	h := startHarness(t, context.Background(), app, nil)

	app.faults <- errors.New("listener died")
	err := h.wait(t)

	// Teardown itself succeeded; the fault alone forces a non-zero exit.
	require.NoError(t, err)
	assert.Equal(t, int32(1), app.calls.Load())
	assert.Equal(t, []int{1}, h.exits.calls())

	logs := h.logs.String()
	assert.Contains(t, logs, "Application reported an unrecoverable error")
	assert.Contains(t, logs, "listener died")
	assert.Contains(t, logs, "Stopped.")
}

func TestRun_ClosedFaultChannelIsNotATrigger(t *testing.T) {
	app := &faultingApp{faults: make(chan error)}
	close(app.faults)
	h := startHarness(t, context.Background(), app, nil)

	select {
	case <-h.done:
		t.Fatal("closed fault channel started a shutdown")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, StateIdle, h.sup.State())

	h.sup.Shutdown()
	require.NoError(t, h.wait(t))
	assert.Equal(t, []int{0}, h.exits.calls())
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &fakeApp{destroy: func(ctx context.Context) error {
		// The teardown context outlives the cancelled run context.
		return ctx.Err()
	}}
	h := startHarness(t, ctx, app, nil)

	cancel()
	require.NoError(t, h.wait(t))

	assert.Equal(t, int32(1), app.calls.Load())
	assert.Equal(t, []int{0}, h.exits.calls())
	assert.Contains(t, h.logs.String(), "trigger=context")
}

func TestShutdown_NeverBlocks(t *testing.T) {
	sup := New(&fakeApp{}, Options{Exit: func(int) {}})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			sup.Shutdown()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown blocked")
	}
}

func TestRun_SecondRunRejected(t *testing.T) {
	h := startHarness(t, context.Background(), &fakeApp{}, nil)

	err := h.sup.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, int32(1), h.signals.notified.Load())

	h.sup.Shutdown()
	require.NoError(t, h.wait(t))
}

// ============================================================================
// Cleanups and metrics
// ============================================================================

func TestRun_CleanupsRunBeforeExit(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string, err error) Cleanup {
		return Cleanup{Name: name, Fn: func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return err
		}}
	}

	var exitOrder []string
	h := startHarness(t, context.Background(), &fakeApp{}, func(o *Options) {
		o.Cleanups = []Cleanup{
			record("telemetry", nil),
			record("watcher", errors.New("already closed")),
			{Name: "nil"},
			record("logger", nil),
		}
		o.Exit = func(code int) {
			mu.Lock()
			exitOrder = append(append([]string(nil), order...), "exit")
			mu.Unlock()
		}
	})

	h.sup.Shutdown()
	require.NoError(t, h.wait(t))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"telemetry", "watcher", "logger", "exit"}, exitOrder)
	assert.Equal(t, 0, h.sup.ExitCode())
	assert.Contains(t, h.logs.String(), "Cleanup failed")
}

type recordingMetrics struct {
	mu        sync.Mutex
	triggers  []string
	ignored   []string
	states    []string
	outcomes  []string
	durations []time.Duration
}

func (m *recordingMetrics) RecordTrigger(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, kind)
}

func (m *recordingMetrics) RecordIgnoredTrigger(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored = append(m.ignored, kind)
}

func (m *recordingMetrics) SetState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *recordingMetrics) ObserveTeardown(outcome string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	m.durations = append(m.durations, d)
}

func TestRun_RecordsMetrics(t *testing.T) {
	release := make(chan struct{})
	m := &recordingMetrics{}
	app := &fakeApp{destroy: func(context.Context) error {
		<-release
		return errors.New("stuck handle")
	}}
	h := startHarness(t, context.Background(), app, func(o *Options) { o.Metrics = m })

	h.signals.send(t, syscall.SIGTERM)
	h.signals.send(t, os.Interrupt)
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.ignored) == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	require.ErrorIs(t, h.wait(t), ErrTeardown)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{TriggerSignal}, m.triggers)
	assert.Equal(t, []string{TriggerSignal}, m.ignored)
	assert.Equal(t, []string{"idle", "shutting_down", "terminated"}, m.states)
	assert.Equal(t, []string{OutcomeFailure}, m.outcomes)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "shutting_down", StateShuttingDown.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestNew_Defaults(t *testing.T) {
	sup := New(&fakeApp{}, Options{})

	assert.Equal(t, DefaultShutdownTimeout, sup.opts.ShutdownTimeout)
	assert.Len(t, sup.opts.Signals, 2)
	assert.NotNil(t, sup.opts.Exit)
	assert.NotNil(t, sup.opts.Notify)
	assert.NotNil(t, sup.opts.StopNotify)
	assert.Equal(t, StateIdle, sup.State())
	assert.Equal(t, 0, sup.ExitCode())
}

func TestRun_LogsInstanceIDOnce(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"plain context", context.Background()},
		{"context with log fields", logger.WithContext(context.Background(),
			logger.NewLogContext("test-instance").WithComponent("supervisor"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startHarness(t, tt.ctx, &fakeApp{}, nil)
			h.signals.send(t, syscall.SIGTERM)
			require.NoError(t, h.wait(t))

			var checked int
			for _, line := range strings.Split(h.logs.String(), "\n") {
				if strings.Contains(line, "Supervisor running") ||
					strings.Contains(line, "Shutting down alarm-clock") ||
					strings.Contains(line, "Stopped.") {
					checked++
					assert.Equal(t, 1, strings.Count(line, "instance_id="), line)
					assert.Contains(t, line, "instance_id=test-instance")
				}
			}
			assert.Equal(t, 3, checked)
		})
	}
}
