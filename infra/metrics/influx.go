package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/techdispatch/core/metrics"
	"github.com/kilianp07/techdispatch/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxSink. Timeout
// bounds every write and the start-up health check; zero means 5s.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

func (c InfluxConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

// InfluxSink writes dispatch observations to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.timeout()}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.timeout(),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordTransition writes one job_transition point.
func (s *InfluxSink) RecordTransition(rec coremetrics.TransitionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("job_transition").
		AddTag("job_id", rec.JobID).
		AddTag("tier", rec.Tier).
		AddTag("from", rec.From).
		AddTag("to", rec.To).
		AddField("level", rec.Level).
		AddField("latency_s", round3(rec.Latency.Seconds())).
		SetTime(rec.Time)
	if rec.TechnicianID != "" {
		p.AddTag("technician_id", rec.TechnicianID)
	}
	if rec.Reason != "" {
		p.AddField("reason", rec.Reason)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBroadcast writes one job_broadcast point.
func (s *InfluxSink) RecordBroadcast(rec coremetrics.BroadcastRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("job_broadcast").
		AddTag("job_id", rec.JobID).
		AddTag("tier", rec.Tier).
		AddTag("level", strconv.Itoa(rec.Level)).
		AddField("candidates", rec.Candidates).
		AddField("nearest_km", round3(rec.NearestKm)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEscalation writes one job_escalation point.
func (s *InfluxSink) RecordEscalation(rec coremetrics.EscalationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("job_escalation").
		AddTag("job_id", rec.JobID).
		AddTag("tier", rec.Tier).
		AddTag("immediate", strconv.FormatBool(rec.Immediate)).
		AddField("level", rec.Level).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordNotifyFailure writes one notify_failure point.
func (s *InfluxSink) RecordNotifyFailure(rec coremetrics.NotifyFailureRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("notify_failure").
		AddTag("job_id", rec.JobID).
		AddTag("channel", rec.Channel).
		AddField("error", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFleetSize writes one fleet_size point.
func (s *InfluxSink) RecordFleetSize(total, available int) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("fleet_size").
		AddField("total", total).
		AddField("available", available).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
