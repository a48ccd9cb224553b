package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"snowcraft/internal/ui"
)

var (
	renderEntity string
	renderOutput string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the SQL batches without executing them",
	Long: `Resolve every entity and print the SQL statement batch that deploy
would execute. With --output, batches are written as one .sql file per
entity instead.`,
	Run: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderEntity, "entity", "e", "", "Render a single entity by key")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write batches to this directory instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) {
	p, err := buildPipeline(manifestFile, templateDir)
	if err != nil {
		ui.ShowError(err)
		return
	}

	keys := p.orderedKeys()
	if renderEntity != "" {
		if _, ok := p.resolved[renderEntity]; !ok {
			ui.ShowError(fmt.Errorf("no entity %q in manifest", renderEntity))
			return
		}
		keys = []string{renderEntity}
	}

	if renderOutput != "" {
		if err := os.MkdirAll(renderOutput, 0o755); err != nil {
			ui.ShowError(err)
			return
		}
	}

	for _, key := range keys {
		statements, err := p.gen.Statements(p.resolved[key], p.ctx)
		if err != nil {
			ui.ShowError(err)
			return
		}

		batch := strings.Join(statements, ";\n\n") + ";\n"

		if renderOutput != "" {
			path := filepath.Join(renderOutput, key+".sql")
			if err := os.WriteFile(path, []byte(batch), 0o644); err != nil {
				ui.ShowError(err)
				return
			}
			ui.ShowInfo("Wrote " + path)
			continue
		}

		fmt.Printf("-- entity: %s (%s)\n%s\n", key, p.resolved[key].Kind, batch)
	}
}
