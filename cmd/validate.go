package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowcraft/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the project manifest",
	Long: `Load the manifest, resolve every entity against its mixins and
check that all references and template expressions can be resolved.`,
	Run: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	p, err := buildPipeline(manifestFile, templateDir)
	if err != nil {
		ui.ShowError(err)
		return
	}

	// Rendering every batch surfaces undefined variables and template
	// syntax errors before anything reaches a live connection.
	for _, key := range p.orderedKeys() {
		if _, err := p.gen.Statements(p.resolved[key], p.ctx); err != nil {
			ui.ShowError(err)
			return
		}
	}

	ui.ShowSuccess(fmt.Sprintf("Manifest is valid: %d entities, %d mixins",
		len(p.def.Entities), len(p.def.Mixins)))
}
