// Package parse converts Prometheus text exposition format into the flat
// observations consumed by the aggregation pipeline.
package parse

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/promkit/promwrite/types"
)

// Parser turns exposition text into observations. The zero value is not
// usable; construct with New.
type Parser struct {
	// Now supplies the timestamp for samples that do not carry one.
	Now func() time.Time
	log log.Logger
}

func New(l log.Logger) *Parser {
	return &Parser{
		Now: time.Now,
		log: l,
	}
}

// Parse reads exposition-format text and returns one observation per data
// line. HELP and TYPE lines are metadata only and produce no observations.
// Families typed histogram or summary fail the whole parse; the write
// protocol payload built downstream has no representation for them.
func (p *Parser) Parse(text []byte) ([]types.Observation, error) {
	tp := expfmt.NewTextParser(model.LegacyValidation)
	families, err := tp.TextToMetricFamilies(bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("could not parse input as Prometheus text format: %w", err)
	}

	defaultTS := p.Now().UnixMilli()
	obs := make([]types.Observation, 0, len(families))
	for name, mf := range families {
		kind := kindOf(mf.GetType())
		if !kind.Supported() {
			return nil, fmt.Errorf("metric %q: %s metrics are not supported", name, kind)
		}
		for _, m := range mf.GetMetric() {
			o := types.Observation{
				Name:        name,
				Labels:      make(map[string]string, len(m.GetLabel())),
				TimestampMS: defaultTS,
			}
			for _, lp := range m.GetLabel() {
				o.Labels[lp.GetName()] = lp.GetValue()
			}
			switch kind {
			case types.KindCounter:
				o.Value = m.GetCounter().GetValue()
			case types.KindGauge:
				o.Value = m.GetGauge().GetValue()
			default:
				o.Value = m.GetUntyped().GetValue()
			}
			if m.TimestampMs != nil {
				o.TimestampMS = m.GetTimestampMs()
			}
			obs = append(obs, o)
		}
	}
	level.Debug(p.log).Log("msg", "parsed exposition input", "families", len(families), "observations", len(obs))
	return obs, nil
}

func kindOf(t dto.MetricType) types.ValueKind {
	switch t {
	case dto.MetricType_COUNTER:
		return types.KindCounter
	case dto.MetricType_GAUGE:
		return types.KindGauge
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		return types.KindHistogram
	case dto.MetricType_SUMMARY:
		return types.KindSummary
	default:
		return types.KindUntyped
	}
}
