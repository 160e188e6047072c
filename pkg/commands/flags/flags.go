// Package flags provides the flags shared by the wormhole-connect commands.
//
// Command specific flags are defined next to their command.
package flags

import (
	"github.com/spf13/cobra"
)

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
func MustBool(b bool, _ error) bool { return b }

// Config adds the persistent --config/-c flag naming the YAML config file.
// Retrieve the value with cmd.Flags().GetString("config").
func Config(cmd *cobra.Command, defaultValue string) {
	cmd.PersistentFlags().StringP("config", "c", defaultValue, "Path of the config file")
}

// Environment adds the persistent --environment/-e flag. An empty value keeps the
// environment of the config.
func Environment(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("environment", "e", "", "Network environment: mainnet or testnet")
}

// JSON adds the --json flag for machine readable output.
func JSON(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Print output as JSON")
}
