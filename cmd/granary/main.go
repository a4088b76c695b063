// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the granary CLI, which syncs Granola
// meeting transcripts to local Markdown and maintains search indices over
// them.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/granary/internal/api"
	"github.com/pdiddy/granary/internal/auth"
	"github.com/pdiddy/granary/internal/storage"
	"github.com/pdiddy/granary/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// secretsDir is where the token provider chain looks for key files.
const secretsDir = ".secrets/"

// rootCmd is the base command for the granary CLI.
var rootCmd = &cobra.Command{
	Use:   "granary",
	Short: "Sync Granola meeting transcripts to local Markdown",
	Long: `granary fetches meeting transcripts from the Granola API and keeps a local
mirror of them as Markdown files with YAML frontmatter. Sync is incremental:
only meetings whose remote timestamp moved are re-fetched, and renamed
meetings are reconciled on disk.

Alongside the transcripts, granary can maintain a SQLite full-text index and
an embedding store for semantic search; both are rebuilt incrementally on
each sync pass.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./granary.yaml or ~/.config/granary/config.yaml)")
	rootCmd.PersistentFlags().String("token", "", "Granola bearer token (overrides env and session file)")
	rootCmd.PersistentFlags().String("api-base", "", "Granola API base URL")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default: OS user data dir + granary)")
	rootCmd.PersistentFlags().Bool("no-throttle", false, "disable the politeness delay between API calls")
	rootCmd.PersistentFlags().String("throttle-ms", "", "politeness delay range in milliseconds, as min:max (e.g. 100:300)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("granary")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "granary"))
		}
	}

	viper.SetEnvPrefix("GRANARY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// resolvePaths builds the data directory layout from the --data-dir flag or
// the config file.
func resolvePaths(cmd *cobra.Command) (storage.Paths, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = viper.GetString("sync.data_dir")
	}
	return storage.NewPaths(dataDir)
}

// newAPIClient resolves the bearer token and builds a configured client.
func newAPIClient(cmd *cobra.Command) (*api.Client, error) {
	cliToken, _ := cmd.Flags().GetString("token")
	token, err := auth.ResolveToken(auth.DefaultChain(cliToken, secretsDir)...)
	if err != nil {
		return nil, err
	}

	baseURL, _ := cmd.Flags().GetString("api-base")
	if baseURL == "" {
		baseURL = viper.GetString("api.base_url")
	}

	client := api.NewClient(token, types.APIConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("api.timeout"),
			UserAgent: viper.GetString("api.user_agent"),
		},
		BaseURL:     baseURL,
		ThrottleMin: viper.GetDuration("api.throttle_min"),
		ThrottleMax: viper.GetDuration("api.throttle_max"),
	})

	if rangeStr, _ := cmd.Flags().GetString("throttle-ms"); rangeStr != "" {
		min, max, err := parseThrottleRange(rangeStr)
		if err != nil {
			return nil, err
		}
		client.WithThrottle(min, max)
	}
	if noThrottle, _ := cmd.Flags().GetBool("no-throttle"); noThrottle {
		client.DisableThrottle()
	}
	return client, nil
}

// parseThrottleRange parses a "min:max" millisecond range, as in "100:300".
func parseThrottleRange(s string) (min, max time.Duration, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid throttle range %q: want min:max in milliseconds", s)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid throttle minimum %q: %w", parts[0], err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid throttle maximum %q: %w", parts[1], err)
	}
	if lo < 0 || hi < 0 {
		return 0, 0, fmt.Errorf("invalid throttle range %q: values must not be negative", s)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("invalid throttle range %q: minimum exceeds maximum", s)
	}
	return time.Duration(lo) * time.Millisecond, time.Duration(hi) * time.Millisecond, nil
}

// embeddingConfig assembles the embedding settings from flags and config.
func embeddingConfig(cmd *cobra.Command) types.EmbeddingConfig {
	cfg := types.EmbeddingConfig{
		Endpoint: viper.GetString("embedding.endpoint"),
		Model:    viper.GetString("embedding.model"),
		APIKey:   viper.GetString("embedding.api_key"),
		Dim:      viper.GetInt("embedding.dim"),
	}
	cfg.Timeout = viper.GetDuration("embedding.timeout")

	if v, _ := cmd.Flags().GetString("embed-endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("embed-model"); v != "" {
		cfg.Model = v
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GRANARY_EMBED_API_KEY")
	}
	return cfg
}

// formatDate renders a timestamp as a date for listings, "-" when unset.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
