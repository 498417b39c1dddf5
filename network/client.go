// Package network is the transport collaborator: it owns the HTTP client,
// retry policy and status-code handling for remote-write sends.
package network

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/config"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/atomic"

	"github.com/promkit/promwrite/remote"
	"github.com/promkit/promwrite/types"
)

// Client sends write requests to a single remote-write endpoint.
type Client struct {
	client     *http.Client
	cfg        types.ConnectionConfig
	log        log.Logger
	statsFunc  func(types.NetworkStats)
	stopCalled atomic.Bool
}

// New builds a Client from the connection settings. The stats callback is
// optional and is invoked once per send attempt.
func New(cc types.ConnectionConfig, l log.Logger, stats func(types.NetworkStats)) (*Client, error) {
	httpClient, err := config.NewClientFromConfig(cc.ToPrometheusConfig(), "remote_write")
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = func(types.NetworkStats) {}
	}
	return &Client{
		client:    httpClient,
		cfg:       cc,
		log:       log.With(l, "name", "client", "url", cc.URL),
		statsFunc: stats,
	}, nil
}

// Stop aborts any in-flight retry loop. Safe to call from another goroutine.
func (c *Client) Stop() {
	c.stopCalled.Store(true)
}

// Write encodes wr into a compressed payload and sends it, retrying
// recoverable failures up to MaxRetryAttempts.
func (c *Client) Write(ctx context.Context, wr *prompb.WriteRequest) error {
	payload, err := remote.EncodeWriteRequest(wr)
	if err != nil {
		return err
	}
	return c.trySend(ctx, payload, len(wr.Timeseries))
}

// trySend is the core send loop. Retries happen for network errors, 5xx
// and 429 responses; everything else fails the write immediately.
func (c *Client) trySend(ctx context.Context, payload []byte, seriesCount int) error {
	attempts := 0
	for {
		start := time.Now()
		result := c.send(ctx, payload, attempts)
		c.recordStats(result, seriesCount, len(payload), time.Since(start))
		if result.successful {
			return nil
		}
		if result.err != nil {
			level.Error(c.log).Log("msg", "error sending write request", "err", result.err.Error())
		}
		if !result.recoverableError {
			return result.err
		}
		attempts++
		if attempts > int(c.cfg.MaxRetryAttempts) {
			level.Debug(c.log).Log("msg", "max retry attempts reached", "attempts", attempts)
			return result.err
		}
		// This helps us short circuit the loop if we are stopping.
		if c.stopCalled.Load() {
			return result.err
		}
		// Sleep between attempts.
		time.Sleep(result.retryAfter)
	}
}

type sendResult struct {
	err              error
	successful       bool
	recoverableError bool
	retryAfter       time.Duration
	statusCode       int
	networkError     bool
}

// send performs one attempt against the endpoint.
func (c *Client) send(ctx context.Context, payload []byte, retryCount int) sendResult {
	result := sendResult{}
	if c.cfg.Timeout > 0 {
		var cncl context.CancelFunc
		ctx, cncl = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cncl()
	}
	httpReq, err := remote.NewHTTPRequest(ctx, c.cfg.URL, c.cfg.UserAgent, c.cfg.Headers, payload)
	if err != nil {
		// A request we cannot even build will not improve on retry.
		result.err = err
		return result
	}
	if retryCount > 0 {
		httpReq.Header.Set("Retry-Attempt", strconv.Itoa(retryCount))
	}

	resp, err := c.client.Do(httpReq)
	// Network errors are recoverable.
	if err != nil {
		result.err = err
		result.networkError = true
		result.recoverableError = true
		result.retryAfter = c.cfg.RetryBackoff
		return result
	}
	result.statusCode = resp.StatusCode
	defer resp.Body.Close()
	// 500 errors are considered recoverable.
	if resp.StatusCode/100 == 5 || resp.StatusCode == http.StatusTooManyRequests {
		result.err = fmt.Errorf("server responded with status code %d", resp.StatusCode)
		result.retryAfter = retryAfterDuration(c.cfg.RetryBackoff, resp.Header.Get("Retry-After"))
		result.recoverableError = true
		return result
	}
	// Status codes that are not 5xx or 2xx are not recoverable.
	if resp.StatusCode/100 != 2 {
		scanner := bufio.NewScanner(io.LimitReader(resp.Body, 1_000))
		line := ""
		if scanner.Scan() {
			line = scanner.Text()
		}
		result.err = fmt.Errorf("server returned HTTP status %s: %s", resp.Status, line)
		return result
	}

	result.successful = true
	return result
}

func (c *Client) recordStats(result sendResult, seriesCount, payloadBytes int, duration time.Duration) {
	ns := types.NetworkStats{SendDuration: duration}
	switch {
	case result.successful:
		ns.SeriesSent = seriesCount
		ns.SeriesBytes = payloadBytes
	case result.networkError:
		ns.NetworkErrors = 1
	case result.recoverableError:
		ns.RetriedSeries = seriesCount
		if result.statusCode == http.StatusTooManyRequests {
			ns.RetriedSeries429 = seriesCount
		} else {
			ns.RetriedSeries5XX = seriesCount
		}
	default:
		ns.FailedSeries = seriesCount
	}
	c.statsFunc(ns)
}

func retryAfterDuration(defaultDuration time.Duration, t string) time.Duration {
	if parsedTime, err := time.Parse(http.TimeFormat, t); err == nil {
		return time.Until(parsedTime)
	}
	// The duration can be in seconds.
	d, err := strconv.Atoi(t)
	if err != nil {
		return defaultDuration
	}
	return time.Duration(d) * time.Second
}
