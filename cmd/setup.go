package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowcraft/internal/config"
	"snowcraft/internal/security"
	"snowcraft/internal/snowflake"
	"snowcraft/internal/ui"
)

var setupKeyring bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure a warehouse connection profile",
	Long: `Interactively configure a connection profile. The password is
encrypted in the configuration file, or stored in the system keyring with
--keyring.`,
	Run: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().BoolVar(&setupKeyring, "keyring", false, "Store the password in the system keyring")
}

func runSetup(cmd *cobra.Command, args []string) {
	conn, err := ui.NewConnectionWizard().Run()
	if err != nil {
		ui.ShowError(err)
		return
	}

	if err := snowflake.ValidateConfig(*conn); err != nil {
		ui.ShowError(err)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		ui.ShowError(err)
		return
	}

	if setupKeyring {
		cm, err := security.NewCredentialManager("")
		if err != nil {
			ui.ShowError(err)
			return
		}
		if err := cm.StoreCredential(conn.Name, "password", conn.Password, map[string]string{
			"account":  conn.Account,
			"username": conn.Username,
		}); err != nil {
			ui.ShowError(err)
			return
		}
		conn.Password = ""
	}

	replaced := false
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == conn.Name {
			cfg.Connections[i] = *conn
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Connections = append(cfg.Connections, *conn)
	}
	if cfg.DefaultConnection == "" {
		cfg.DefaultConnection = conn.Name
	}

	if err := config.Save(cfg); err != nil {
		ui.ShowError(err)
		return
	}

	ui.ShowSuccess(fmt.Sprintf("Profile %q saved to %s", conn.Name, config.GetConfigFile()))
}
