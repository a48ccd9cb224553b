package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowcraft/pkg/models"
)

func TestDeployFlags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "connection", shorthand: "c", defValue: ""},
		{name: "dry-run", shorthand: "d", defValue: "false"},
		{name: "build-dir", shorthand: "", defValue: "build"},
		{name: "yes", shorthand: "y", defValue: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := deployCmd.Flags().Lookup(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.defValue, f.DefValue)
		})
	}
}

func TestDeployFlagsHaveUsage(t *testing.T) {
	deployCmd.Flags().VisitAll(func(f *pflag.Flag) {
		assert.NotEmpty(t, f.Usage, "flag %s has no usage text", f.Name)
	})
}

func TestApplyDeploymentDefaults(t *testing.T) {
	reset := func() {
		deployDryRun = false
		deployBuildDir = "build"
		templateDir = ""
	}
	reset()
	t.Cleanup(reset)

	newFlags := func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("deploy", pflag.ContinueOnError)
		flags.BoolP("dry-run", "d", false, "")
		flags.String("build-dir", "build", "")
		return flags
	}

	dep := models.Deployment{DryRun: true, BuildDir: "output/deploy", TemplateDir: "tpl"}

	applyDeploymentDefaults(newFlags(), dep)
	assert.True(t, deployDryRun)
	assert.Equal(t, "output/deploy", deployBuildDir)
	assert.Equal(t, "tpl", templateDir)

	// Explicit flags and an earlier template dir keep their values
	reset()
	deployDryRun = false
	templateDir = "flagged"
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--dry-run=false", "--build-dir", "elsewhere"}))
	deployBuildDir = "elsewhere"

	applyDeploymentDefaults(flags, dep)
	assert.False(t, deployDryRun)
	assert.Equal(t, "elsewhere", deployBuildDir)
	assert.Equal(t, "flagged", templateDir)
}

func TestDeployDryRunFlagParses(t *testing.T) {
	flags := pflag.NewFlagSet("deploy", pflag.ContinueOnError)
	flags.AddFlagSet(deployCmd.Flags())

	err := flags.Parse([]string{"--dry-run", "--connection", "prod"})
	require.NoError(t, err)

	dryRun, err := flags.GetBool("dry-run")
	require.NoError(t, err)
	assert.True(t, dryRun)

	conn, err := flags.GetString("connection")
	require.NoError(t, err)
	assert.Equal(t, "prod", conn)
}
