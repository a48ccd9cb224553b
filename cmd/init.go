package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"snowcraft/internal/scaffold"
	"snowcraft/internal/ui"
)

var (
	initTemplate  string
	initDatabase  string
	initSchema    string
	initWarehouse string
)

var initCmd = &cobra.Command{
	Use:   "init <project-name>",
	Short: "Create a new project",
	Long: `Create a new project directory with a starter manifest, template
directory and native application skeleton. With --template, the project is
cloned from a git template repository instead.`,
	Args: cobra.ExactArgs(1),
	Run:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initTemplate, "template", "t", "", "Git URL of a template repository")
	initCmd.Flags().StringVar(&initDatabase, "database", "DEV", "Default database")
	initCmd.Flags().StringVar(&initSchema, "schema", "PUBLIC", "Default schema")
	initCmd.Flags().StringVar(&initWarehouse, "warehouse", "COMPUTE_WH", "Default warehouse")
}

func runInit(cmd *cobra.Command, args []string) {
	name := args[0]
	dir, err := filepath.Abs(name)
	if err != nil {
		ui.ShowError(err)
		return
	}

	gen := scaffold.NewGenerator(dir, &scaffold.Config{
		ProjectName: name,
		Database:    initDatabase,
		Schema:      initSchema,
		Warehouse:   initWarehouse,
	})

	if initTemplate != "" {
		spinner := ui.NewSpinner(fmt.Sprintf("Cloning template %s", initTemplate))
		spinner.Start()
		err = gen.FromGitTemplate(context.Background(), initTemplate)
		spinner.Stop(err == nil, fmt.Sprintf("Project %s created from template", name))
	} else {
		err = gen.Generate()
	}

	if err != nil {
		ui.ShowError(err)
		return
	}

	ui.ShowSuccess(fmt.Sprintf("Project created in %s", dir))
	ui.ShowInfo("Next: cd " + name + " && snowcraft validate")
}
