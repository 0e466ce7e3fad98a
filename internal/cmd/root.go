// Package cmd wires the wrangler CLI: run (sequential), batch (parallel),
// status, and doctor.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmcrae/wrangler/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "wrangler",
	Short: "Checklist-driven orchestrator for long-running coding agents",
	Long: `Wrangler drives an autonomous coding agent through a markdown
checklist, iteration by iteration, until every box is checked. It watches
the agent's event stream for resource exhaustion and stuck loops, rotates
sessions before context runs out, and can fan tasks out to parallel
workers in isolated git worktrees.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./wrangler.yaml)")
	rootCmd.PersistentFlags().String("checklist", "TASKS.md", "path to the checklist document")
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("checklist", rootCmd.PersistentFlags().Lookup("checklist"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Defaults first so they hold even without a config file.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("wrangler")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/wrangler")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WRANGLER")
	// Nested keys map to env vars with underscores, e.g.
	// WRANGLER_LOOP_MAX_ITERATIONS for loop.max_iterations.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing config file is fine; the defaults carry the run.
	_ = viper.ReadInConfig()
}
