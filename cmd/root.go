package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

type contextKey string

// Context key for configuration
const ConfigKey contextKey = "config"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "keeper",
	Short: "Infer shrinker keep rules for instrumentation test APKs",
	Long: `keeper analyzes an Android application's test classes against its production
classes and infers the minimal set of R8/ProGuard keep rules needed so that a
minified production build stays usable by the test APK.

The test APK compiles against unshrunk production classes but runs against the
shrunk ones. keeper traces every symbol the test code references and keeps
exactly the production classes and members those references resolve to.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	config := NewAppConfig(nil, nil) // Loggers are created per command
	ctx := context.WithValue(context.Background(), ConfigKey, config)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().String("config", "", "config file (default: .keeper.yaml, .keeper.yml or .keeper.json)")
	rootCmd.SetVersionTemplate(`keeper {{.Version}}` + "\n")
}
