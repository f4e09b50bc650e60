// Command server runs the trunk-player API, recorder import endpoint and
// live gateway.
package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"
)

func main() {
    root := &cobra.Command{
        Use:           "trunkplayer",
        Short:         "Radio transmission archive and live player backend",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    root.AddCommand(serveCommand(), migrateCommand(), tokenCommand())

    if err := root.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "error:", err)
        os.Exit(1)
    }
}
