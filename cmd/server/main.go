// Command server runs the share registry API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "sharereg"

func main() {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Share registry: ownership ledger, meetings, proxies and transfers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), migrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
