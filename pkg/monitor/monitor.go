package monitor

import (
	"sync"
	"time"

	"github.com/itohio/gopms/pkg/aqi"
	"github.com/itohio/gopms/pkg/sample"
)

var _ AirMonitor = (*Monitor)(nil)

// Stats summarizes the samples currently held in the window.
type Stats struct {
	Count     int
	From, To  time.Time
	MeanPM25  float64 // Mean PM2.5 standard-particle concentration (µg/m³)
	MaxPM25   uint16
	MeanAQI   float64
	MaxAQI    int
	WorstSeen aqi.Category // Category of MaxAQI
}

// AirMonitor keeps a time window of samples and notifies listeners on change.
type AirMonitor interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample                            // Current window (ordered oldest to newest)
	Latest() (sample.Sample, bool)                       // Newest sample, false if the window is empty
	Stats() Stats                                        // Summary of the current window
	OnUpdate(func(samples []sample.Sample, stats Stats)) // Register callback for updates
}

// Monitor implements AirMonitor.
// Samples are kept in a FIFO ordered by arrival; removal is based on the
// timestamp of the newest sample, not on the number of samples.
type Monitor struct {
	window time.Duration

	samples []sample.Sample

	mu sync.RWMutex

	callbacks []func(samples []sample.Sample, stats Stats)
	cbMu      sync.RWMutex

	// Set when the input channel closes, suppresses further callbacks.
	shutdown bool
}

// New creates a Monitor keeping samples no older than window relative to the
// newest one. A non-positive window keeps only the newest sample.
func New(window time.Duration) *Monitor {
	return &Monitor{
		window:    window,
		samples:   make([]sample.Sample, 0),
		callbacks: make([]func(samples []sample.Sample, stats Stats), 0),
	}
}

// ProcessSamples consumes the input channel until it is closed.
func (m *Monitor) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

func (m *Monitor) processSample(s sample.Sample) {
	m.mu.Lock()
	m.samples = append(m.samples, s)
	m.trimLocked(s.Timestamp)
	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// trimLocked drops samples at or before newest-window.
func (m *Monitor) trimLocked(newest time.Time) {
	cutoff := newest.Add(-m.window)
	cutoffIndex := len(m.samples) - 1
	for i, s := range m.samples {
		if s.Timestamp.After(cutoff) {
			cutoffIndex = i
			break
		}
	}
	if cutoffIndex > 0 {
		m.samples = append(m.samples[:0], m.samples[cutoffIndex:]...)
	}
}

// Samples returns a copy of the current window.
func (m *Monitor) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Latest returns the newest sample.
func (m *Monitor) Latest() (sample.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) == 0 {
		return sample.Sample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

// Stats summarizes the current window.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return summarize(m.samples)
}

func summarize(samples []sample.Sample) Stats {
	var st Stats
	if len(samples) == 0 {
		return st
	}

	st.Count = len(samples)
	st.From = samples[0].Timestamp
	st.To = samples[len(samples)-1].Timestamp

	var pmSum, aqiSum float64
	for _, s := range samples {
		pmSum += float64(s.PM25Std)
		aqiSum += float64(s.AQI)
		if s.PM25Std > st.MaxPM25 {
			st.MaxPM25 = s.PM25Std
		}
		if s.AQI > st.MaxAQI {
			st.MaxAQI = s.AQI
		}
	}
	st.MeanPM25 = pmSum / float64(st.Count)
	st.MeanAQI = aqiSum / float64(st.Count)
	st.WorstSeen = aqi.CategoryOf(st.MaxAQI)
	return st
}

// OnUpdate registers a callback invoked after every processed sample.
// The callback receives copies and should return quickly.
func (m *Monitor) OnUpdate(callback func(samples []sample.Sample, stats Stats)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again after the input channel was closed.
// Call it before feeding the monitor a new channel.
func (m *Monitor) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

func (m *Monitor) notifyCallbacks() {
	m.mu.RLock()
	samplesCopy := make([]sample.Sample, len(m.samples))
	copy(samplesCopy, m.samples)
	stats := summarize(m.samples)
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := make([]func(samples []sample.Sample, stats Stats), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samplesCopy, stats)
		}
	}
}
