package e2e

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/techdispatch/app"
	"github.com/kilianp07/techdispatch/config"
	"github.com/kilianp07/techdispatch/core/factory"
	"github.com/kilianp07/techdispatch/core/model"
	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	infmqtt "github.com/kilianp07/techdispatch/infra/mqtt"
	"github.com/kilianp07/techdispatch/simulator"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal JUnit XML report so CI systems can display the
// results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container with the e2e org, bucket
// and admin token already provisioned.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// Test_E2E_DispatchRoundTrip submits a job over MQTT, lets a simulated
// fleet accept it and checks the transitions reached InfluxDB.
func Test_E2E_DispatchRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, brokerURL := startMosquitto(ctx, t)
	defer mqttCont.Terminate(ctx) //nolint:errcheck
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", brokerURL)

	mqttCfg := infmqtt.Config{Broker: brokerURL, ClientID: "e2e", QoS: map[string]byte{"offer": 1, "response": 1, "result": 1, "request": 1}}
	cfg := config.Default()
	cfg.MQTT = mqttCfg
	cfg.Metrics.Sinks = []factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket},
	}}

	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close() //nolint:errcheck

	simCfg := simulator.Config{Count: 3, Origin: model.Location{Lat: 6.9271, Lng: 79.8612}, SpreadKm: 2, Skills: []string{"plumbing"}, Seed: 7}
	simCfg.SetDefaults()
	techs := simulator.GenerateFleet(simCfg, simulator.NewRand(simCfg.Seed))
	if err := svc.Directory.Seed(techs); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := svc.Run(runCtx); err != nil {
			t.Errorf("service run: %v", err)
		}
	}()

	simClient, err := infmqtt.NewPahoClient(mqttCfg, "sim")
	if err != nil {
		t.Fatalf("sim connect: %v", err)
	}
	defer simClient.Disconnect()
	fleet := simulator.NewFleet(simClient, simulator.AutoAccept{Delay: 100 * time.Millisecond}, techs, 0, simulator.NewRand(1))
	if err := fleet.Start(runCtx); err != nil {
		t.Fatalf("fleet start: %v", err)
	}

	// Give the service time to subscribe before submitting.
	time.Sleep(time.Second)
	req := coremqtt.JobRequestMessage{ID: "job-e2e", Lat: 6.93, Lng: 79.86, ServiceType: "plumbing", Tier: "urgent"}
	if err := simClient.PublishJSON(coremqtt.JobRequestTopic, "request", req); err != nil {
		t.Fatalf("publish request: %v", err)
	}

	var job model.Job
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, err = svc.Coordinator.Get(ctx, "job-e2e")
		if err == nil && job.Status == model.StatusAccepted && fleet.Counters().Won == 1 {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	if job.Status != model.StatusAccepted {
		t.Fatalf("job not accepted: status=%s err=%v", job.Status, err)
	}
	if c := fleet.Counters(); c.Won != 1 {
		t.Fatalf("expected exactly one winning technician, got %+v", c)
	}

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	var n int
	for i := 0; i < 20; i++ {
		n, err = cli.CountPoints(ctx, "job_transition", "job-e2e")
		if err == nil && n >= 2 {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if n < 2 {
		t.Fatalf("expected at least 2 job_transition points, got %d (err=%v)", n, err)
	}
	t.Logf("Influx holds %d transitions for job-e2e", n)

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(t.TempDir(), "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
