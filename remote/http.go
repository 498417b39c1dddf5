package remote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"golang.org/x/net/http/httpguts"
)

const (
	// ContentType identifies the protobuf payload carried in the body.
	ContentType = "application/x-protobuf"
	// RemoteWriteVersionHeader carries the protocol version literal.
	RemoteWriteVersionHeader = "X-Prometheus-Remote-Write-Version"
	RemoteWriteVersion1      = "0.1.0"
)

// ValidateHeaders rejects header names or values that are not valid HTTP
// field material before a request is built from them.
func ValidateHeaders(h http.Header) error {
	for name, values := range h {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("invalid header name %q", name)
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return fmt.Errorf("invalid value for header %q", name)
			}
		}
	}
	return nil
}

// NewHTTPRequest wraps a compressed payload in the remote-write envelope:
// a POST carrying the content type, protocol version, content encoding and
// user agent. Extra headers are merged last and may override the fixed
// set; overriding the protocol headers will usually make the server reject
// the write, so that is left to the caller's judgement.
func NewHTTPRequest(ctx context.Context, endpoint, userAgent string, extra http.Header, payload []byte) (*http.Request, error) {
	if err := ValidateHeaders(extra); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Add("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", ContentType)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set(RemoteWriteVersionHeader, RemoteWriteVersion1)
	for name, values := range extra {
		httpReq.Header.Del(name)
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	return httpReq, nil
}
