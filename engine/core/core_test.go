package core

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifiers(t *testing.T) {
	ids := NewIdentifiers(2)

	a := ids.Acquire("a")
	b := ids.Acquire("b")
	c := ids.Acquire("c")
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{a, b, c})
	assert.Equal(t, 3, ids.Count())
	assert.Equal(t, "b", ids.Owner(b))

	require.NoError(t, ids.Release(b))
	assert.Nil(t, ids.Owner(b))
	assert.Equal(t, b, ids.Acquire("d"), "released slots are reused first")

	assert.Error(t, ids.Release(9))
	require.NoError(t, ids.Release(a))
	assert.Error(t, ids.Release(a))
	assert.Error(t, NewIdentifiers(0).Release(0))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Update(0.002)
	m.Update(0.004)
	assert.InDelta(t, 3.0, m.AverageMS(), 1e-9)
	assert.Equal(t, uint64(2), m.Samples())

	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.001)
	}
	assert.InDelta(t, 1.0, m.AverageMS(), 1e-9)
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	time.Sleep(2 * time.Millisecond)
	c.Stop()
	elapsed := c.Elapsed()
	assert.GreaterOrEqual(t, elapsed, 2*time.Millisecond)

	c.Update()
	assert.Equal(t, elapsed, c.Elapsed(), "a stopped clock keeps its time")
	assert.Equal(t, elapsed.Microseconds(), c.Microseconds())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"error", LogLevelError},
		{"fatal", LogLevelFatal},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(io.Discard)
	defer SetLogLevel(LogLevelInfo)

	SetLogLevel(LogLevelWarn)
	LogInfo("hidden %d", 1)
	LogWarn("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")
}
