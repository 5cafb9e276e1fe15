package utils

// Latency samples (microseconds) and counts pushed by request code and
// drained by the metric package.
type Metric struct {
	DatabaseRead    chan float64
	DatabaseWrite   chan float64
	ImageProcess    chan float64
	EventsGenerated chan float64
}

func NewMetric() *Metric {
	return &Metric{
		DatabaseRead:    make(chan float64, 64),
		DatabaseWrite:   make(chan float64, 64),
		ImageProcess:    make(chan float64, 64),
		EventsGenerated: make(chan float64, 64),
	}
}

// Push a sample without blocking; samples are dropped when nobody collects.
func (m *Metric) Push(ch chan float64, value float64) {
	if m == nil || ch == nil {
		return
	}
	select {
	case ch <- value:
	default:
	}
}
