package ui

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"snowcraft/pkg/models"
)

// ConnectionWizard interactively builds a connection profile
type ConnectionWizard struct{}

// NewConnectionWizard creates a new connection wizard
func NewConnectionWizard() *ConnectionWizard {
	return &ConnectionWizard{}
}

// Run asks for the connection details and returns the profile
func (w *ConnectionWizard) Run() (*models.Connection, error) {
	ShowHeader("Snowcraft - Connection Setup")

	questions := []*survey.Question{
		{
			Name: "name",
			Prompt: &survey.Input{
				Message: "Profile name:",
				Default: "default",
				Help:    "Name used to select this connection (e.g., dev, prod)",
			},
			Validate: survey.Required,
		},
		{
			Name: "account",
			Prompt: &survey.Input{
				Message: "Account:",
				Help:    "Your account identifier (e.g., xy12345.us-east-1)",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
				Help:    "Stored encrypted in the configuration file",
			},
			Validate: survey.Required,
		},
		{
			Name: "database",
			Prompt: &survey.Input{
				Message: "Database:",
				Default: "DEV",
			},
			Validate: survey.Required,
		},
		{
			Name: "schema",
			Prompt: &survey.Input{
				Message: "Schema:",
				Default: "PUBLIC",
			},
			Validate: survey.Required,
		},
		{
			Name: "warehouse",
			Prompt: &survey.Input{
				Message: "Warehouse:",
				Default: "COMPUTE_WH",
			},
			Validate: survey.Required,
		},
		{
			Name: "role",
			Prompt: &survey.Input{
				Message: "Role:",
				Default: "SYSADMIN",
			},
			Validate: survey.Required,
		},
	}

	answers := struct {
		Name      string
		Account   string
		Username  string
		Password  string
		Database  string
		Schema    string
		Warehouse string
		Role      string
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		if err == terminal.InterruptErr {
			return nil, fmt.Errorf("setup cancelled")
		}
		return nil, err
	}

	conn := &models.Connection{
		Name:      answers.Name,
		Account:   answers.Account,
		Username:  answers.Username,
		Password:  answers.Password,
		Database:  answers.Database,
		Schema:    answers.Schema,
		Warehouse: answers.Warehouse,
		Role:      answers.Role,
		Timeout:   "30s",
	}

	confirmed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Save profile %q for account %s?", conn.Name, conn.Account),
		Default: true,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, fmt.Errorf("setup cancelled")
	}

	return conn, nil
}
