package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uyouii/optimal-stopping/config"
)

func TestApplyFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--seed", "9", "--warmup", "0", "--length", "50",
		"--estimator", "kde", "--rule", "tail_risk", "--drift"}))

	f := &runFlags{}
	f.seed, _ = cmd.Flags().GetUint64("seed")
	f.warmup, _ = cmd.Flags().GetInt("warmup")
	f.length, _ = cmd.Flags().GetInt("length")
	f.estimator, _ = cmd.Flags().GetString("estimator")
	f.rule, _ = cmd.Flags().GetString("rule")
	f.drift, _ = cmd.Flags().GetBool("drift")

	cfg := applyFlags(cmd, config.Default(), f)
	require.NotNil(t, cfg.RandomSeed)
	assert.Equal(t, uint64(9), *cfg.RandomSeed)
	assert.Equal(t, 0, cfg.WarmupLength)
	assert.Equal(t, 50, cfg.StreamLength)
	assert.Equal(t, config.EstimatorKDE, cfg.Estimator)
	assert.Equal(t, config.RuleTailRisk, cfg.Rule)
	assert.True(t, cfg.Drift.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestApplyFlagsKeepsConfig(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg := applyFlags(cmd, config.Default(), &runFlags{warmup: -1})
	assert.Equal(t, config.Default(), cfg)
}

func TestRunCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	lines := []string{"price"}
	for i := 0; i < 40; i++ {
		lines = append(lines, []string{"10", "12", "11", "9"}[i%4])
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"run", "--source", "csv", "--file", path, "--warmup", "10", "--seed", "1",
		"--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "state:")
}

func TestRunRejectsUnknownSource(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run", "--source", "kafka"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}
