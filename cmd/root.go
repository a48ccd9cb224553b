package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	manifestFile string
	templateDir  string

	rootCmd = &cobra.Command{
		Use:   "snowcraft",
		Short: "Provision warehouse objects from a declarative manifest",
		Long: `Snowcraft - A CLI tool that renders a declarative project manifest
into SQL statement batches and provisions compute pools, services,
functions, procedures, stages and native application packages.`,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&manifestFile, "file", "f", "snowcraft.yaml", "Project manifest path")
	rootCmd.PersistentFlags().StringVar(&templateDir, "template-dir", "", "Search directory for included templates (default: templates/ next to the manifest)")
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home + "/.snowcraft")
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file is fine, flags keep their defaults
		return
	}
	applyConfigDefaults()
}

// applyConfigDefaults backfills flag values from the discovered config.
// Flags passed on the command line always win.
func applyConfigDefaults() {
	if !rootCmd.PersistentFlags().Changed("file") && viper.IsSet("manifest") {
		manifestFile = viper.GetString("manifest")
	}
	if templateDir == "" {
		templateDir = viper.GetString("deployment.template_dir")
	}
}
