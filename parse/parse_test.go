package parse

import (
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/promkit/promwrite/types"
)

func newTestParser(nowMS int64) *Parser {
	p := New(log.NewNopLogger())
	p.Now = func() time.Time { return time.UnixMilli(nowMS) }
	return p
}

func TestParseObservations(t *testing.T) {
	input := `# HELP http_requests_total Total requests.
# TYPE http_requests_total counter
http_requests_total{method="post",code="200"} 1027 1395066363000
# TYPE temperature gauge
temperature{location="outside"} 21.5 1000
mygauge 100 100
`
	obs, err := newTestParser(5000).Parse([]byte(input))
	require.NoError(t, err)
	require.ElementsMatch(t, []types.Observation{
		{
			Name:        "http_requests_total",
			Labels:      map[string]string{"method": "post", "code": "200"},
			Value:       1027,
			TimestampMS: 1395066363000,
		},
		{
			Name:        "temperature",
			Labels:      map[string]string{"location": "outside"},
			Value:       21.5,
			TimestampMS: 1000,
		},
		{
			Name:        "mygauge",
			Labels:      map[string]string{},
			Value:       100,
			TimestampMS: 100,
		},
	}, obs)
}

func TestParseDefaultsMissingTimestamp(t *testing.T) {
	obs, err := newTestParser(123456).Parse([]byte("up 1\n"))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	require.Equal(t, int64(123456), obs[0].TimestampMS)
}

func TestParseRejectsHistogram(t *testing.T) {
	input := `# TYPE request_duration histogram
request_duration_bucket{le="+Inf"} 3
request_duration_sum 2.5
request_duration_count 3
`
	_, err := newTestParser(0).Parse([]byte(input))
	require.Error(t, err)
	require.Contains(t, err.Error(), "histogram metrics are not supported")
}

func TestParseRejectsSummary(t *testing.T) {
	input := `# TYPE rpc_duration summary
rpc_duration{quantile="0.5"} 4
rpc_duration_sum 17
rpc_duration_count 2
`
	_, err := newTestParser(0).Parse([]byte(input))
	require.Error(t, err)
	require.Contains(t, err.Error(), "summary metrics are not supported")
}

func TestParseMalformedInput(t *testing.T) {
	_, err := newTestParser(0).Parse([]byte("this is { not exposition format\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "could not parse input as Prometheus text format")
}

func TestParseDirectivesOnly(t *testing.T) {
	input := `# HELP up Whether the target is up.
# TYPE up gauge
`
	obs, err := newTestParser(0).Parse([]byte(input))
	require.NoError(t, err)
	require.Empty(t, obs)
}
