package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/techdispatch/config"
)

func TestApplyServeOverrides(t *testing.T) {
	defer func() { serveOpts.logLevel, serveOpts.httpAddr, serveOpts.seed = "", "", "" }()

	cfg := config.Default()
	serveOpts.logLevel = "debug"
	serveOpts.httpAddr = ":9090"
	serveOpts.seed = "fleet.yaml"
	require.NoError(t, applyServeOverrides(cfg))
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "fleet.yaml", cfg.Seed.Technicians)

	serveOpts.logLevel = "loud"
	require.Error(t, applyServeOverrides(config.Default()))
}
