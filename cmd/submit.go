package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/techdispatch/api/jobs"
	"github.com/kilianp07/techdispatch/auth"
	"github.com/kilianp07/techdispatch/config"
	"github.com/kilianp07/techdispatch/core/model"
	coremqtt "github.com/kilianp07/techdispatch/core/mqtt"
	infmqtt "github.com/kilianp07/techdispatch/infra/mqtt"
)

type submitOptions struct {
	url     string
	via     string
	id      string
	lat     float64
	lng     float64
	service string
	tier    string
	timeout time.Duration
	auth    auth.Conf
}

var submitOpts submitOptions

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job to a running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), submitOpts.timeout)
		defer cancel()
		switch submitOpts.via {
		case "http":
			return submitHTTP(ctx, cmd.OutOrStdout(), submitOpts)
		case "mqtt":
			return submitMQTT(cmd.OutOrStdout(), submitOpts)
		default:
			return fmt.Errorf("unknown transport %q (want http or mqtt)", submitOpts.via)
		}
	},
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitOpts.url, "url", "http://localhost:8080", "base URL of the dispatch API")
	f.StringVar(&submitOpts.via, "via", "http", "transport: http or mqtt")
	f.StringVar(&submitOpts.id, "id", "", "job id (generated when empty)")
	f.Float64Var(&submitOpts.lat, "lat", 0, "job latitude")
	f.Float64Var(&submitOpts.lng, "lng", 0, "job longitude")
	f.StringVar(&submitOpts.service, "service", "", "service type (empty matches every skill)")
	f.StringVar(&submitOpts.tier, "tier", "normal", "priority tier: normal, urgent or emergency")
	f.DurationVar(&submitOpts.timeout, "timeout", 10*time.Second, "request timeout")
	f.StringVar(&submitOpts.auth.Token, "token", "", "static bearer token")
	f.StringVar(&submitOpts.auth.ClientID, "client-id", "", "OAuth2 client id")
	f.StringVar(&submitOpts.auth.ClientSecret, "client-secret", "", "OAuth2 client secret")
	f.StringVar(&submitOpts.auth.TokenURL, "token-url", "", "OAuth2 token endpoint")
	f.StringSliceVar(&submitOpts.auth.Scopes, "scope", nil, "OAuth2 scopes")
	rootCmd.AddCommand(submitCmd)
}

func submitHTTP(ctx context.Context, out io.Writer, o submitOptions) error {
	body, err := json.Marshal(jobs.SubmitRequest{
		ID:          o.id,
		Location:    model.Location{Lat: o.lat, Lng: o.lng},
		ServiceType: o.service,
		Tier:        o.tier,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(o.url, "/")+"/api/jobs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client, err := apiClient(ctx, o.auth)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("submit failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	_, err = out.Write(payload)
	return err
}

func submitMQTT(out io.Writer, o submitOptions) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.MQTT.Enabled() {
		return fmt.Errorf("mqtt.broker is not configured")
	}
	msg := coremqtt.JobRequestMessage{ID: o.id, Lat: o.lat, Lng: o.lng, ServiceType: o.service, Tier: o.tier}
	if _, err := msg.Job(); err != nil {
		return err
	}
	client, err := infmqtt.NewPahoClient(cfg.MQTT, "submit")
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()
	if err := client.PublishJSON(coremqtt.JobRequestTopic, "request", msg); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "published job request to %s\n", coremqtt.JobRequestTopic)
	return err
}
