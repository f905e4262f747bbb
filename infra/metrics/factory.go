package metrics

import (
	"fmt"

	"github.com/kilianp07/techdispatch/core/factory"
	coremetrics "github.com/kilianp07/techdispatch/core/metrics"
)

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var none struct{}
		if err := factory.Decode(conf, &none); err != nil {
			return nil, err
		}
		return coremetrics.NopSink{}, nil
	})

	// The /metrics endpoint is served from metrics.prometheus_addr; this
	// sink only registers its collectors.
	_ = coremetrics.RegisterMetricsSink("prometheus", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var none struct{}
		if err := factory.Decode(conf, &none); err != nil {
			return nil, err
		}
		return NewPromSink()
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" || c.Bucket == "" || c.Org == "" {
			return nil, fmt.Errorf("url, org and bucket are required")
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
