package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  use_tls: false
  qos:
    offer: 1
dispatch:
  radius_growth: 0.25
  tiers:
    emergency:
      deadline_seconds: 45
      escalation_ceiling: 4
  journal:
    backend: "jsonl"
    path: "transitions.log"
pricing:
  surge:
    urgent: 1.8
metrics:
  sinks:
    - type: "nop"
  prometheus_addr: ":9100"
logging:
  level: debug
store:
  backend: sqlite
  path: jobs.db
http:
  addr: ":8080"
seed:
  technicians: "fleet.yaml"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"password", cfg.MQTT.Password, "pass"},
		{"use_tls", cfg.MQTT.UseTLS, false},
		{"qos.offer", cfg.MQTT.QoS["offer"], byte(1)},
		{"radius_growth", cfg.Dispatch.RadiusGrowth, 0.25},
		{"broadcast_growth default", cfg.Dispatch.BroadcastGrowth, 1.0},
		{"tier deadline", cfg.Dispatch.Tiers["emergency"].DeadlineSeconds, 45},
		{"tier ceiling", cfg.Dispatch.Tiers["emergency"].EscalationCeiling, 4},
		{"journal backend", cfg.Dispatch.Journal.Backend, "jsonl"},
		{"journal rotation default", cfg.Dispatch.Journal.MaxSizeMB, 10},
		{"surge", cfg.Pricing.Surge["urgent"], 1.8},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"store.backend", cfg.Store.Backend, "sqlite"},
		{"http.addr", cfg.HTTP.Addr, ":8080"},
		{"http.read_timeout default", cfg.HTTP.ReadTimeoutSeconds, 10},
		{"seed", cfg.Seed.Technicians, "fleet.yaml"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"mqtt":{"broker":"tcp://file:1883"},"http":{"addr":":8080"}}`)
	t.Setenv("K_MQTT__BROKER", "tcp://env:1883")
	t.Setenv("K_HTTP__ADDR", ":9999")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://env:1883" {
		t.Fatalf("env override not applied: %s", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("env override not applied: %s", cfg.HTTP.Addr)
	}
	if cfg.Store.Backend != "memory" || cfg.Logging.Level != "info" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Store, cfg.Logging)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown tier":    "dispatch:\n  tiers:\n    critical:\n      deadline_seconds: 5\n",
		"negative growth": "dispatch:\n  radius_growth: -1\n",
		"bad surge":       "pricing:\n  surge:\n    normal: 0.5\n",
		"bad level":       "logging:\n  level: loud\n",
		"bad store":       "store:\n  backend: mongo\n",
		"bad journal":     "dispatch:\n  journal:\n    backend: csv\n    path: x\n",
		"tls missing":     "mqtt:\n  use_tls: true\n",
		"sentry rate":     "sentry:\n  traces_sample_rate: 2\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, "c.yaml", data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load(writeConfig(t, "c.toml", "")); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MQTT.Enabled() {
		t.Fatal("default config must not require a broker")
	}
}
