package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/prompb"
	"github.com/spf13/cobra"

	"github.com/promkit/promwrite/network"
	"github.com/promkit/promwrite/parse"
	"github.com/promkit/promwrite/remote"
	"github.com/promkit/promwrite/types"
)

// version is set at build time via -ldflags.
var version = "dev"

type options struct {
	url     string
	file    string
	name    string
	value   float64
	kind    string
	labels  []string
	headers []string
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "promwrite",
		Short:         "Write metrics to Prometheus over the remote-write API",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.url, "url", "u", "", "Prometheus remote write endpoint URL (required)")
	f.StringVarP(&opts.file, "file", "f", "", "read metrics from a file in the Prometheus text format, '-' reads stdin")
	f.StringVarP(&opts.name, "name", "n", "", "metric name")
	f.Float64VarP(&opts.value, "value", "v", 0, "metric value")
	f.StringVarP(&opts.kind, "type", "t", "", "metric type (counter or gauge); defaults to counter for names ending in _total, gauge otherwise")
	f.StringArrayVarP(&opts.labels, "label", "l", nil, "label as key=value, repeatable")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "additional HTTP header as key=value, repeatable")
	f.DurationVar(&opts.timeout, "timeout", 60*time.Second, "HTTP request timeout")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(cmd.ErrOrStderr()))

	if u, err := url.Parse(opts.url); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url %q for flag -u/--url", opts.url)
	}
	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return err
	}
	wr, err := buildWriteRequest(cmd, opts, logger)
	if err != nil {
		return err
	}

	cc := types.ConnectionConfig{
		URL:          opts.url,
		UserAgent:    "promwrite/" + version,
		Timeout:      opts.timeout,
		RetryBackoff: 1 * time.Second,
		Headers:      headers,
	}
	client, err := network.New(cc, logger, nil)
	if err != nil {
		return err
	}
	if err := client.Write(cmd.Context(), wr); err != nil {
		return err
	}
	level.Info(logger).Log("msg", "metrics written successfully")
	return nil
}

func buildWriteRequest(cmd *cobra.Command, opts *options, logger log.Logger) (*prompb.WriteRequest, error) {
	if opts.file != "" {
		for _, flag := range []string{"name", "value", "type", "label"} {
			if cmd.Flags().Changed(flag) {
				return nil, fmt.Errorf("flag --%s cannot be used with -f/--file", flag)
			}
		}
		text, err := readInput(cmd, opts.file)
		if err != nil {
			return nil, err
		}
		obs, err := parse.New(logger).Parse(text)
		if err != nil {
			return nil, err
		}
		return remote.BuildWriteRequest(obs)
	}

	if opts.name == "" {
		return nil, errors.New("missing required flag -n/--name (or -f/--file)")
	}
	if !cmd.Flags().Changed("value") {
		return nil, errors.New("missing required flag -v/--value")
	}
	if _, err := resolveKind(opts.kind, opts.name); err != nil {
		return nil, err
	}
	lbls, err := parseLabels(opts.labels)
	if err != nil {
		return nil, err
	}
	obs := []types.Observation{{
		Name:        opts.name,
		Labels:      lbls,
		Value:       opts.value,
		TimestampMS: time.Now().UnixMilli(),
	}}
	return remote.BuildWriteRequest(obs)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		text, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("could not read metrics from stdin: %w", err)
		}
		return text, nil
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file %q: %w", path, err)
	}
	return text, nil
}

// resolveKind validates the -t/--type flag. The kind only gates which
// inputs are accepted; plain samples carry no type on the wire.
func resolveKind(flag, name string) (types.ValueKind, error) {
	switch flag {
	case "":
		if strings.HasSuffix(name, "_total") {
			return types.KindCounter, nil
		}
		return types.KindGauge, nil
	case "counter":
		return types.KindCounter, nil
	case "gauge":
		return types.KindGauge, nil
	case "histogram", "summary":
		return types.KindUntyped, fmt.Errorf("metric type %q is not supported", flag)
	default:
		return types.KindUntyped, fmt.Errorf("unknown metric type %q", flag)
	}
}

func parseLabels(pairs []string) (map[string]string, error) {
	lbls := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("-l/--label requires a key-value pair (X=Y), got %q", pair)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return nil, fmt.Errorf("-l/--label requires a non-empty key: %q", pair)
		}
		if value == "" {
			return nil, fmt.Errorf("-l/--label requires a non-empty value: %q", pair)
		}
		if key == labels.MetricName {
			return nil, fmt.Errorf("label name %q is reserved for the metric name", key)
		}
		lbls[key] = value
	}
	return lbls, nil
}

func parseHeaders(pairs []string) (http.Header, error) {
	headers := make(http.Header, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("-H/--header requires a key-value pair (X=Y), got %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("-H/--header requires a non-empty key: %q", pair)
		}
		headers.Add(key, strings.TrimSpace(value))
	}
	if err := remote.ValidateHeaders(headers); err != nil {
		return nil, err
	}
	return headers, nil
}
