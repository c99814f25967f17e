package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("output-dir", "results", "")
	cmd.Flags().Int("max-trials", 50, "")
	cmd.Flags().Duration("per-trial-timeout", 15*time.Second, "")
	cmd.Flags().Bool("revert-winner", false, "")
	addLLMFlags(cmd.Flags())
	return cmd
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optimizer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`max_trials: 7
output_dir: from-file
revert_winner_immediately: false
llm:
  model: file-model
`), 0o600))

	cmd := newConfigTestCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--config", path,
		"--max-trials", "3",
		"--revert-winner",
		"--model", "flag-model",
	}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxTrials)
	assert.Equal(t, "from-file", cfg.OutputDir)
	require.NotNil(t, cfg.RevertWinnerImmediately)
	assert.True(t, *cfg.RevertWinnerImmediately)
	assert.Equal(t, "flag-model", cfg.LLM.Model)
	assert.Equal(t, 15*time.Second, cfg.PerTrialTimeout)
}

func TestLoadConfigRevertWinnerUnsetWithoutFlag(t *testing.T) {
	cmd := newConfigTestCmd()
	require.NoError(t, cmd.Flags().Parse(nil))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Nil(t, cfg.RevertWinnerImmediately)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := newConfigTestCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))

	_, err := loadConfig(cmd)
	assert.Error(t, err)
}
