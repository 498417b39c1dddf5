package remote_test

import (
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/require"

	"github.com/promkit/promwrite/parse"
	"github.com/promkit/promwrite/remote"
)

// Exercises the whole text-to-request pipeline on mixed input: grouping,
// series ordering, label ordering and sample ordering.
func TestTextToWriteRequest(t *testing.T) {
	input := `mygauge 100 100
http_requests_total{method="post",code="200"} 1027 1395066363000
alpha 10 1000
http_requests_total{method="post",code="200"} 50 1000
`
	p := parse.New(log.NewNopLogger())
	p.Now = func() time.Time { return time.UnixMilli(0) }
	obs, err := p.Parse([]byte(input))
	require.NoError(t, err)

	wr, err := remote.BuildWriteRequest(obs)
	require.NoError(t, err)
	remote.SortWriteRequest(wr)

	require.Equal(t, &prompb.WriteRequest{Timeseries: []prompb.TimeSeries{
		{
			Labels:  []prompb.Label{{Name: labels.MetricName, Value: "alpha"}},
			Samples: []prompb.Sample{{Value: 10, Timestamp: 1000}},
		},
		{
			Labels: []prompb.Label{
				{Name: labels.MetricName, Value: "http_requests_total"},
				{Name: "code", Value: "200"},
				{Name: "method", Value: "post"},
			},
			Samples: []prompb.Sample{
				{Value: 50, Timestamp: 1000},
				{Value: 1027, Timestamp: 1395066363000},
			},
		},
		{
			Labels:  []prompb.Label{{Name: labels.MetricName, Value: "mygauge"}},
			Samples: []prompb.Sample{{Value: 100, Timestamp: 100}},
		},
	}}, wr)
}
