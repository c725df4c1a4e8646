package core

import "sync"

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling average over the last AVG_COUNT timings, in
// milliseconds. Used to report animation sampling and import cost.
type Metrics struct {
	mu         sync.Mutex
	avgCounter uint8
	msTimes    [AVG_COUNT]float64
	msAvg      float64
	samples    uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records one timing given in seconds.
func (m *Metrics) Update(elapsedSeconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := elapsedSeconds * 1000.0
	m.msTimes[m.avgCounter] = ms
	m.samples++

	// Average over what we have until the window is full once.
	window := uint64(AVG_COUNT)
	if m.samples < window {
		window = m.samples
	}
	sum := 0.0
	for i := uint64(0); i < window; i++ {
		sum += m.msTimes[i]
	}
	m.msAvg = sum / float64(window)

	m.avgCounter++
	m.avgCounter %= AVG_COUNT
}

// AverageMS returns the rolling average in milliseconds.
func (m *Metrics) AverageMS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msAvg
}

func (m *Metrics) Samples() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}
