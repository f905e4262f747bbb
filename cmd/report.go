package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/techdispatch/auth"
	"github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/pkg/export"
)

var reportOpts struct {
	url     string
	format  string
	out     string
	timeout time.Duration
	auth    auth.Conf
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export dispatch statistics from a running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), reportOpts.timeout)
		defer cancel()
		st, err := fetchStats(ctx, reportOpts.url, reportOpts.auth)
		if err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if reportOpts.out != "" {
			f, err := os.Create(reportOpts.out)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		return export.Write(w, st, reportOpts.format)
	},
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportOpts.url, "url", "http://localhost:8080", "base URL of the dispatch API")
	f.StringVar(&reportOpts.format, "format", "json", "output format: json, csv or html")
	f.StringVarP(&reportOpts.out, "out", "o", "", "output file (stdout when empty)")
	f.DurationVar(&reportOpts.timeout, "timeout", 10*time.Second, "request timeout")
	f.StringVar(&reportOpts.auth.Token, "token", "", "static bearer token")
	f.StringVar(&reportOpts.auth.ClientID, "client-id", "", "OAuth2 client id")
	f.StringVar(&reportOpts.auth.ClientSecret, "client-secret", "", "OAuth2 client secret")
	f.StringVar(&reportOpts.auth.TokenURL, "token-url", "", "OAuth2 token endpoint")
	f.StringSliceVar(&reportOpts.auth.Scopes, "scope", nil, "OAuth2 scopes")
	rootCmd.AddCommand(reportCmd)
}

func fetchStats(ctx context.Context, baseURL string, conf auth.Conf) (dispatch.Stats, error) {
	client, err := apiClient(ctx, conf)
	if err != nil {
		return dispatch.Stats{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/dispatch/stats", nil)
	if err != nil {
		return dispatch.Stats{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return dispatch.Stats{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return dispatch.Stats{}, fmt.Errorf("stats request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var st dispatch.Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return dispatch.Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	return st, nil
}

// apiClient returns an HTTP client authenticating with conf, or the
// default client when no credential is configured.
func apiClient(ctx context.Context, conf auth.Conf) (*http.Client, error) {
	if !conf.Enabled() {
		return http.DefaultClient, nil
	}
	cred, err := auth.NewClientCred(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return cred.HTTPClient(nil), nil
}
