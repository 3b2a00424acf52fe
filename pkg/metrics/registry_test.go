package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	ResetRegistry()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	reg := InitRegistry()
	t.Cleanup(ResetRegistry)

	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
}

func TestHandler(t *testing.T) {
	ResetRegistry()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	InitRegistry()
	t.Cleanup(ResetRegistry)

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type countingMetrics struct {
	triggers, ignored, states, teardowns int
}

func (c *countingMetrics) RecordTrigger(string)                  { c.triggers++ }
func (c *countingMetrics) RecordIgnoredTrigger(string)           { c.ignored++ }
func (c *countingMetrics) SetState(string)                       { c.states++ }
func (c *countingMetrics) ObserveTeardown(string, time.Duration) { c.teardowns++ }

func TestNilSafeHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordTrigger(nil, "signal")
		RecordIgnoredTrigger(nil, "signal")
		SetState(nil, "idle")
		ObserveTeardown(nil, "success", time.Second)
	})

	c := &countingMetrics{}
	RecordTrigger(c, "signal")
	RecordIgnoredTrigger(c, "signal")
	SetState(c, "idle")
	ObserveTeardown(c, "success", time.Second)
	assert.Equal(t, &countingMetrics{1, 1, 1, 1}, c)
}

func TestNewSupervisorMetrics_NoConstructor(t *testing.T) {
	InitRegistry()
	t.Cleanup(ResetRegistry)

	saved := newPrometheusSupervisorMetrics
	newPrometheusSupervisorMetrics = nil
	t.Cleanup(func() { newPrometheusSupervisorMetrics = saved })

	assert.Nil(t, NewSupervisorMetrics())
}
