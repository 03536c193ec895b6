package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/feedtag/internal/config"
	"github.com/kailas-cloud/feedtag/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "feedtag",
	Short: "Per-tag naive Bayes classifier for feed entries",
	Long: `feedtag learns one classifier per user tag from tagged and read feed
entries and recommends tags for unread ones.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version.String()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("env", config.GetEnv(), "config environment (loads config/<env>.yaml)")
	rootCmd.PersistentFlags().String("config", "", "explicit config file, overrides --env")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves --config or --env.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	env, err := cmd.Flags().GetString("env")
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to get env flag: %w", err)
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to get config flag: %w", err)
	}

	var cfg config.Config
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, env, nil
}
