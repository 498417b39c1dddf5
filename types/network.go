package types

import (
	"net/http"
	"time"

	"github.com/prometheus/common/config"
)

// ConnectionConfig holds configuration details for the remote-write
// connection: authentication, timeouts and retry policy.
type ConnectionConfig struct {
	// URL is the remote write endpoint.
	URL string
	// BasicAuth holds the username and password for basic HTTP authentication.
	BasicAuth *BasicAuth
	// BearerToken is the bearer token for the endpoint.
	BearerToken string
	// UserAgent is the User-Agent header sent with every request.
	UserAgent string
	// Timeout specifies how long a single request may take before it is
	// abandoned. Zero means no timeout.
	Timeout time.Duration
	// RetryBackoff is the duration between retries when a request fails
	// and the server did not provide a Retry-After.
	RetryBackoff time.Duration
	// MaxRetryAttempts specifies how many times a recoverable failure is
	// retried. If this is set to 0, no retries are attempted.
	MaxRetryAttempts uint
	// Headers are additional headers sent with every request. They are
	// merged after the protocol headers and may override them; overriding
	// the protocol headers will usually make the server reject the write.
	Headers http.Header
	// InsecureSkipVerify controls whether the client verifies the server's
	// certificate chain and host name.
	InsecureSkipVerify bool
}

type BasicAuth struct {
	Username string
	Password string
}

// ToPrometheusConfig converts the connection settings into the config
// used to construct the underlying HTTP client.
func (cc ConnectionConfig) ToPrometheusConfig() config.HTTPClientConfig {
	cfg := config.HTTPClientConfig{
		TLSConfig: config.TLSConfig{
			InsecureSkipVerify: cc.InsecureSkipVerify,
		},
	}
	if cc.BasicAuth != nil {
		cfg.BasicAuth = &config.BasicAuth{
			Username: cc.BasicAuth.Username,
			Password: config.Secret(cc.BasicAuth.Password),
		}
	} else if cc.BearerToken != "" {
		cfg.BearerToken = config.Secret(cc.BearerToken)
	}
	return cfg
}

// NetworkStats is emitted once per send attempt.
type NetworkStats struct {
	SeriesSent       int
	RetriedSeries    int
	RetriedSeries429 int
	RetriedSeries5XX int
	FailedSeries     int
	NetworkErrors    int
	SeriesBytes      int
	SendDuration     time.Duration
}
