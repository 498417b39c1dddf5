// Package remote builds, orders and encodes remote-write v1 requests.
package remote

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/prompb"

	"github.com/promkit/promwrite/types"
)

// ErrReservedLabel is returned when an observation carries __name__ as an
// explicit label. The metric name owns that key.
var ErrReservedLabel = fmt.Errorf("label name %q is reserved", labels.MetricName)

// BuildWriteRequest groups observations into time series. Two observations
// land in the same series exactly when their metric name and full label
// set match, regardless of input order. The returned request is not yet
// sorted; callers must pass it through SortWriteRequest before encoding.
func BuildWriteRequest(obs []types.Observation) (*prompb.WriteRequest, error) {
	return buildWriteRequest(obs, func(lbls labels.Labels, buf []byte) uint64 {
		return xxhash.Sum64(lbls.Bytes(buf))
	})
}

func buildWriteRequest(obs []types.Observation, hash func(labels.Labels, []byte) uint64) (*prompb.WriteRequest, error) {
	// The hash is only a bucket key; identity is the full label set. Two
	// distinct label sets colliding on the hash must never be merged.
	index := make(map[uint64][]int, len(obs))
	series := make([]prompb.TimeSeries, 0, len(obs))
	seriesLbls := make([]labels.Labels, 0, len(obs))
	buf := make([]byte, 0, 1024)
	for _, o := range obs {
		lbls, err := seriesLabels(o)
		if err != nil {
			return nil, err
		}
		key := hash(lbls, buf)
		i := -1
		for _, candidate := range index[key] {
			if labels.Equal(seriesLbls[candidate], lbls) {
				i = candidate
				break
			}
		}
		if i < 0 {
			series = append(series, prompb.TimeSeries{Labels: toLabelPairs(lbls)})
			seriesLbls = append(seriesLbls, lbls)
			i = len(series) - 1
			index[key] = append(index[key], i)
		}
		series[i].Samples = append(series[i].Samples, prompb.Sample{
			Value:     o.Value,
			Timestamp: o.TimestampMS,
		})
	}
	return &prompb.WriteRequest{Timeseries: series}, nil
}

// seriesLabels returns the observation's full identity label set, with
// the metric name bound to __name__ and everything sorted by name.
func seriesLabels(o types.Observation) (labels.Labels, error) {
	if _, ok := o.Labels[labels.MetricName]; ok {
		return labels.EmptyLabels(), fmt.Errorf("metric %q: %w", o.Name, ErrReservedLabel)
	}
	lb := labels.NewScratchBuilder(len(o.Labels) + 1)
	lb.Add(labels.MetricName, o.Name)
	for k, v := range o.Labels {
		lb.Add(k, v)
	}
	lb.Sort()
	return lb.Labels(), nil
}

func toLabelPairs(lbls labels.Labels) []prompb.Label {
	out := make([]prompb.Label, 0, lbls.Len())
	lbls.Range(func(l labels.Label) {
		out = append(out, prompb.Label{Name: l.Name, Value: l.Value})
	})
	return out
}

// SortWriteRequest enforces the ordering the remote-write protocol defines
// as part of wire validity: labels ascending by name, samples ascending by
// timestamp, series ascending by metric name. Applying it twice yields the
// same structure as applying it once.
func SortWriteRequest(wr *prompb.WriteRequest) {
	for i := range wr.Timeseries {
		sortTimeSeries(&wr.Timeseries[i])
	}
	sort.SliceStable(wr.Timeseries, func(i, j int) bool {
		return metricName(&wr.Timeseries[i]) < metricName(&wr.Timeseries[j])
	})
}

func sortTimeSeries(ts *prompb.TimeSeries) {
	sort.SliceStable(ts.Labels, func(i, j int) bool {
		return ts.Labels[i].Name < ts.Labels[j].Name
	})
	// Stable keeps equal-timestamp samples in grouping order, so repeated
	// runs over identical input stay bit-identical.
	sort.SliceStable(ts.Samples, func(i, j int) bool {
		return ts.Samples[i].Timestamp < ts.Samples[j].Timestamp
	})
}

func metricName(ts *prompb.TimeSeries) string {
	for _, l := range ts.Labels {
		if l.Name == labels.MetricName {
			return l.Value
		}
	}
	return ""
}
