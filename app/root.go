// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zenwatch",
	Short: "ZenWatch is the administration backend of the ZenWatch monitoring platform",
	Long: `ZenWatch is the administration backend of the ZenWatch monitoring platform.
It manages the global authentication configuration and the LDAP directory
providers users authenticate against.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
