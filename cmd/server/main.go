package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "segvote",
		Short:         "Segment voting and moderation API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), unlockCommand())

	// Running the binary bare starts the server, as before subcommands existed.
	if len(os.Args) == 1 {
		root.SetArgs([]string{"serve"})
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
