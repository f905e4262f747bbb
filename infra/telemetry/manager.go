// Package telemetry feeds technician location reports from MQTT into the
// directory and takes silent technicians offline.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/techdispatch/config"
	"github.com/kilianp07/techdispatch/core/model"
	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	"github.com/kilianp07/techdispatch/infra/logger"
	infmqtt "github.com/kilianp07/techdispatch/infra/mqtt"
)

// Directory is the part of the technician directory written by telemetry.
type Directory interface {
	UpdateLocation(id string, loc model.Location, online *bool) error
	MarkStale(cutoff time.Time) []string
}

// Manager consumes technician/+/location reports.
type Manager struct {
	cfg config.TelemetryConfig
	dir Directory
	log logger.Logger
	now func() time.Time

	updates    prometheus.Counter
	rejected   prometheus.Counter
	stale      prometheus.Counter
	lastUpdate prometheus.Gauge
}

// NewManager builds a Manager and registers its collectors on reg. A nil
// registerer uses the default one.
func NewManager(cfg config.TelemetryConfig, dir Directory, reg prometheus.Registerer) (*Manager, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Manager{
		cfg:        cfg,
		dir:        dir,
		log:        logger.New("telemetry"),
		now:        time.Now,
		updates:    prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_location_updates_total", Help: "Technician location reports applied"}),
		rejected:   prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_location_rejected_total", Help: "Technician location reports rejected"}),
		stale:      prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_stale_offline_total", Help: "Technicians taken offline after going silent"}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_update_timestamp_seconds", Help: "Unix timestamp of the last applied location report"}),
	}
	for _, c := range []prometheus.Collector{m.updates, m.rejected, m.stale, m.lastUpdate} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Start subscribes to location reports and runs the stale sweep until
// ctx is done.
func (m *Manager) Start(ctx context.Context, sub infmqtt.Subscriber) error {
	if err := sub.Subscribe(coremqtt.LocationWildcard, "location", m.Handle); err != nil {
		return err
	}
	if m.cfg.StaleAfter() > 0 {
		go m.sweepLoop(ctx)
	}
	return nil
}

// Handle applies one location message.
func (m *Manager) Handle(topic string, payload []byte) {
	if err := m.process(topic, payload); err != nil {
		m.rejected.Inc()
		m.log.Warnf("location report on %s: %v", topic, err)
		return
	}
	m.updates.Inc()
	m.lastUpdate.Set(float64(m.now().Unix()))
}

func (m *Manager) process(topic string, payload []byte) error {
	id, err := coremqtt.TechnicianFromTopic(topic, "location")
	if err != nil {
		return err
	}
	var msg coremqtt.LocationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	return m.dir.UpdateLocation(id, msg.Location(), msg.Online)
}

func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.cfg.SweepInterval()) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep takes offline technicians silent for longer than StaleAfter.
func (m *Manager) Sweep() []string {
	if m.cfg.StaleAfter() <= 0 {
		return nil
	}
	cutoff := m.now().Add(-time.Duration(m.cfg.StaleAfter()) * time.Second)
	ids := m.dir.MarkStale(cutoff)
	if len(ids) > 0 {
		m.stale.Add(float64(len(ids)))
		m.log.Infof("took %d silent technicians offline: %v", len(ids), ids)
	}
	return ids
}
