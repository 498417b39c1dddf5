package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/promkit/promwrite/types"
)

func testRequest() *prompb.WriteRequest {
	return &prompb.WriteRequest{Timeseries: []prompb.TimeSeries{
		{
			Labels:  []prompb.Label{{Name: labels.MetricName, Value: "alpha"}},
			Samples: []prompb.Sample{{Value: 10, Timestamp: 1000}},
		},
		{
			Labels:  []prompb.Label{{Name: labels.MetricName, Value: "beta"}},
			Samples: []prompb.Sample{{Value: 20, Timestamp: 2000}},
		},
	}}
}

func handler(t *testing.T, status int, callback func(r *http.Request, wr *prompb.WriteRequest)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		data, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		wr := &prompb.WriteRequest{}
		require.NoError(t, wr.Unmarshal(data))
		callback(r, wr)
		w.WriteHeader(status)
	}
}

func newTestClient(t *testing.T, cc types.ConnectionConfig, stats func(types.NetworkStats)) *Client {
	t.Helper()
	if cc.UserAgent == "" {
		cc.UserAgent = "promwrite/test"
	}
	if cc.Timeout == 0 {
		cc.Timeout = 1 * time.Second
	}
	c, err := New(cc, log.NewNopLogger(), stats)
	require.NoError(t, err)
	return c
}

func TestWrite(t *testing.T) {
	seriesFound := atomic.Uint32{}
	svr := httptest.NewServer(handler(t, http.StatusOK, func(r *http.Request, wr *prompb.WriteRequest) {
		seriesFound.Add(uint32(len(wr.Timeseries)))
		require.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		require.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))
		require.Equal(t, "0.1.0", r.Header.Get("X-Prometheus-Remote-Write-Version"))
		require.Equal(t, "promwrite/test", r.Header.Get("User-Agent"))
	}))
	defer svr.Close()

	var sent atomic.Int64
	c := newTestClient(t, types.ConnectionConfig{URL: svr.URL}, func(ns types.NetworkStats) {
		sent.Add(int64(ns.SeriesSent))
	})
	require.NoError(t, c.Write(context.Background(), testRequest()))
	require.Equal(t, uint32(2), seriesFound.Load())
	require.Equal(t, int64(2), sent.Load())
}

func TestWriteSendsCustomHeaders(t *testing.T) {
	svr := httptest.NewServer(handler(t, http.StatusOK, func(r *http.Request, _ *prompb.WriteRequest) {
		require.Equal(t, "abc123", r.Header.Get("X-Scope-Orgid"))
	}))
	defer svr.Close()

	headers := http.Header{}
	headers.Set("X-Scope-Orgid", "abc123")
	c := newTestClient(t, types.ConnectionConfig{URL: svr.URL, Headers: headers}, nil)
	require.NoError(t, c.Write(context.Background(), testRequest()))
}

func TestWriteRetriesRecoverable(t *testing.T) {
	attempts := atomic.Int32{}
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.Equal(t, "2", r.Header.Get("Retry-Attempt"))
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	retried := atomic.Int64{}
	c := newTestClient(t, types.ConnectionConfig{
		URL:              svr.URL,
		RetryBackoff:     10 * time.Millisecond,
		MaxRetryAttempts: 5,
	}, func(ns types.NetworkStats) {
		retried.Add(int64(ns.RetriedSeries5XX))
	})
	require.NoError(t, c.Write(context.Background(), testRequest()))
	require.Equal(t, int32(3), attempts.Load())
	require.Equal(t, int64(4), retried.Load())
}

func TestWriteStopsAfterMaxRetries(t *testing.T) {
	attempts := atomic.Int32{}
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer svr.Close()

	c := newTestClient(t, types.ConnectionConfig{
		URL:              svr.URL,
		RetryBackoff:     1 * time.Millisecond,
		MaxRetryAttempts: 2,
	}, nil)
	err := c.Write(context.Background(), testRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status code 429")
	require.Equal(t, int32(3), attempts.Load())
}

func TestWriteDoesNotRetryClientErrors(t *testing.T) {
	attempts := atomic.Int32{}
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("out of order sample"))
	}))
	defer svr.Close()

	failed := atomic.Int64{}
	c := newTestClient(t, types.ConnectionConfig{
		URL:              svr.URL,
		MaxRetryAttempts: 5,
	}, func(ns types.NetworkStats) {
		failed.Add(int64(ns.FailedSeries))
	})
	err := c.Write(context.Background(), testRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of order sample")
	require.Equal(t, int32(1), attempts.Load())
	require.Equal(t, int64(2), failed.Load())
}

func TestRetryAfterDuration(t *testing.T) {
	require.Equal(t, 30*time.Second, retryAfterDuration(5*time.Second, "30"))
	require.Equal(t, 5*time.Second, retryAfterDuration(5*time.Second, "not-a-number"))
	require.Equal(t, 5*time.Second, retryAfterDuration(5*time.Second, ""))
}
