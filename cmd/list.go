package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"snowcraft/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entities defined in the manifest",
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) {
	p, err := buildPipeline(manifestFile, templateDir)
	if err != nil {
		ui.ShowError(err)
		return
	}

	rows := make([]ui.EntityRow, 0, len(p.resolved))
	for _, key := range p.orderedKeys() {
		r := p.resolved[key]
		entity := p.def.Entities[key]

		rows = append(rows, ui.EntityRow{
			Key:        key,
			Kind:       string(r.Kind),
			Identifier: p.ctx.Entities[key].Identifier,
			Mixins:     entity.MixinsUsed,
			Source:     r.FromTarget,
		})
	}

	ui.RenderEntityTable(os.Stdout, rows)
}
