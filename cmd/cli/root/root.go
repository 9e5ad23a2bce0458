package root

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level shelf command; subcommands register themselves in main.
var RootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Bookshelf CLI",
	Long:  "Command line interface for interacting with the Bookshelf API",
}
