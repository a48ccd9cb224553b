package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestRootCommandHelp(t *testing.T) {
	cmd := rootCmd
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetErr(b)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	assert.NoError(t, err)

	output := b.String()
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "deploy")
	assert.Contains(t, output, "render")
	assert.Contains(t, output, "validate")
	assert.Contains(t, output, "setup")
}

func TestApplyConfigDefaults(t *testing.T) {
	origManifest, origTemplateDir := manifestFile, templateDir
	t.Cleanup(func() {
		manifestFile, templateDir = origManifest, origTemplateDir
		viper.Reset()
	})

	viper.Reset()
	viper.Set("manifest", "projects/app/snowcraft.yaml")
	viper.Set("deployment.template_dir", "projects/app/templates")
	manifestFile = "snowcraft.yaml"
	templateDir = ""

	applyConfigDefaults()
	assert.Equal(t, "projects/app/snowcraft.yaml", manifestFile)
	assert.Equal(t, "projects/app/templates", templateDir)

	// A template dir set on the command line is left alone
	templateDir = "flagged"
	applyConfigDefaults()
	assert.Equal(t, "flagged", templateDir)
}

func TestInvalidCommand(t *testing.T) {
	cmd := rootCmd
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetErr(b)
	cmd.SetArgs([]string{"invalid-command"})

	err := cmd.Execute()
	assert.Error(t, err)
}
