package types

// ValueKind is the metric type attached to a parsed sample. The write
// pipeline only carries plain float samples, so histogram and summary
// kinds are rejected at the parse boundary instead of being coerced.
type ValueKind int

const (
	KindUntyped ValueKind = iota
	KindCounter
	KindGauge
	KindHistogram
	KindSummary
)

func (k ValueKind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	case KindSummary:
		return "summary"
	default:
		return "untyped"
	}
}

// Supported reports whether samples of this kind map onto a plain float
// value in the remote-write v1 wire format.
func (k ValueKind) Supported() bool {
	switch k {
	case KindCounter, KindGauge, KindUntyped:
		return true
	default:
		return false
	}
}

// Observation is one parsed sample: a metric name, its label set without
// the __name__ label, a float value and a millisecond timestamp. It only
// lives between the parser and the aggregator.
type Observation struct {
	Name        string
	Labels      map[string]string
	Value       float64
	TimestampMS int64
}
