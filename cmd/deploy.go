package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"snowcraft/internal/artifacts"
	"snowcraft/internal/config"
	"snowcraft/internal/project"
	"snowcraft/internal/render"
	"snowcraft/internal/resolver"
	"snowcraft/internal/security"
	"snowcraft/internal/snowflake"
	"snowcraft/internal/ui"
	"snowcraft/pkg/errors"
	"snowcraft/pkg/models"
)

var (
	deployConnection string
	deployDryRun     bool
	deployBuildDir   string
	deployYes        bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the manifest entities to the warehouse",
	Long: `Render every entity's SQL batch and execute it against the
configured connection. Application package artifacts are bundled and
uploaded to the package stage before dependent entities deploy.`,
	Run: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVarP(&deployConnection, "connection", "c", "", "Connection profile name (default: configured default)")
	deployCmd.Flags().BoolVarP(&deployDryRun, "dry-run", "d", false, "Show what would be deployed without executing")
	deployCmd.Flags().StringVar(&deployBuildDir, "build-dir", "build", "Artifact bundle staging directory")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runDeploy(cmd *cobra.Command, args []string) {
	var dep models.Deployment
	if cfg, err := config.Load(); err == nil {
		dep = cfg.Deployment
		applyDeploymentDefaults(cmd.Flags(), dep)
	}

	p, err := buildPipeline(manifestFile, templateDir)
	if err != nil {
		ui.ShowError(err)
		return
	}

	keys := p.orderedKeys()
	ui.ShowHeader(fmt.Sprintf("Snowcraft - %d entities", len(keys)))

	if deployDryRun {
		for _, key := range keys {
			statements, err := p.gen.Statements(p.resolved[key], p.ctx)
			if err != nil {
				ui.ShowError(err)
				return
			}
			ui.ShowInfo(fmt.Sprintf("%s: %d statements (dry run)", key, len(statements)))
		}
		ui.ShowSuccess("Dry run complete, nothing executed")
		return
	}

	if !deployYes {
		confirmed, err := ui.Confirm(fmt.Sprintf("Deploy %d entities?", len(keys)), true)
		if err != nil || !confirmed {
			ui.ShowWarning("Deployment cancelled")
			return
		}
	}

	service, err := connectService()
	if err != nil {
		ui.ShowError(err)
		return
	}
	defer service.Close()

	var deadline time.Time
	if d, err := time.ParseDuration(dep.Timeout); err == nil && d > 0 {
		deadline = time.Now().Add(d)
	}

	progress := ui.NewProgressBar(len(keys))
	failed := false

	for i, key := range keys {
		if !deadline.IsZero() && time.Now().After(deadline) {
			ui.ShowError(errors.New(errors.ErrCodeSQLTimeout, "Deployment timeout exceeded").
				WithContext("timeout", dep.Timeout))
			failed = true
			break
		}

		r := p.resolved[key]

		statements, err := p.gen.Statements(r, p.ctx)
		if err != nil {
			ui.ShowError(err)
			return
		}

		if err := executeWithRetries(service, statements, dep.MaxRetries, key); err != nil {
			progress.Update(i+1, key, false)
			failed = true
			ui.ShowError(err)
			break
		}

		if err := uploadArtifacts(service, p, key); err != nil {
			progress.Update(i+1, key, false)
			failed = true
			ui.ShowError(err)
			break
		}

		progress.Update(i+1, key, true)
	}

	progress.Finish()
	if !failed {
		ui.ShowSuccess("Deployment complete")
	}
}

// applyDeploymentDefaults backfills deploy flags from the deployment config
// block. Flags passed on the command line always win.
func applyDeploymentDefaults(flags *pflag.FlagSet, dep models.Deployment) {
	if !flags.Changed("dry-run") && dep.DryRun {
		deployDryRun = true
	}
	if !flags.Changed("build-dir") && dep.BuildDir != "" {
		deployBuildDir = dep.BuildDir
	}
	if templateDir == "" {
		templateDir = dep.TemplateDir
	}
}

// executeWithRetries reruns a failed batch up to maxRetries extra attempts
func executeWithRetries(service *snowflake.Service, statements []string, maxRetries int, key string) error {
	err := service.ExecuteBatch(statements)
	for attempt := 1; err != nil && attempt <= maxRetries; attempt++ {
		ui.ShowWarning(fmt.Sprintf("Retrying %s (attempt %d of %d)", key, attempt, maxRetries))
		err = service.ExecuteBatch(statements)
	}
	return err
}

// connectService resolves the connection profile and opens the connection
func connectService() (*snowflake.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	conn, ok := cfg.ConnectionByName(deployConnection)
	if !ok {
		return nil, fmt.Errorf("no connection profile %q; run 'snowcraft setup' first", deployConnection)
	}

	// Profiles saved with --keyring keep the password out of the file
	if conn.Password == "" {
		cm, err := security.NewCredentialManager("")
		if err == nil {
			if cred, err := cm.GetCredential(conn.Name); err == nil {
				conn.Password = cred.Value
			}
		}
	}

	if err := snowflake.ValidateConfig(conn); err != nil {
		return nil, err
	}

	service := snowflake.NewService(conn)
	if err := service.Connect(); err != nil {
		return nil, err
	}
	return service, nil
}

// uploadArtifacts bundles and PUTs an application package's artifacts
func uploadArtifacts(service *snowflake.Service, p *pipeline, key string) error {
	r := p.resolved[key]
	rawArtifacts, ok := r.Fields.Get("artifacts")
	if !ok || r.Kind != project.KindPackage {
		return nil
	}

	rawList, ok := rawArtifacts.Any().([]interface{})
	if !ok {
		return fmt.Errorf("entity %q: artifacts must be a list", key)
	}
	mappings, err := artifacts.ParseMappings(rawList)
	if err != nil {
		return err
	}

	projectRoot := filepath.Dir(manifestFile)
	bundler := artifacts.NewBundler(projectRoot, render.NewContextRenderer())

	buildDir := filepath.Join(deployBuildDir, key)
	staged, err := bundler.Bundle(buildDir, mappings, p.ctx)
	if err != nil {
		return err
	}

	paths := make([]string, len(staged))
	for i, rel := range staged {
		paths[i] = filepath.Join(buildDir, rel)
	}

	return service.UploadFiles(packageStage(r, p.ctx.Entities[key].Identifier), paths)
}

// packageStage returns the fully qualified artifact stage of a package
func packageStage(r *resolver.ResolvedEntity, identifier string) string {
	schema := r.Fields.GetString("stage_schema")
	if schema == "" {
		schema = "stage_content"
	}
	name := r.Fields.GetString("stage_name")
	if name == "" {
		name = "app_src"
	}
	return fmt.Sprintf("%s.%s.%s", identifier, schema, name)
}
