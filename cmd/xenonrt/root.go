// Command xenonrt is the kernel runtime's entrypoint (spec.md §4.12): a
// spf13/cobra command tree gluing configuration parsing to kernel
// bring-up, in the shape of the teacher's own cmd/* tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xenonrt/kernel/internal/config"
	"github.com/xenonrt/kernel/internal/xlog"
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "xenonrt",
	Short: "Emulated Xbox 360 kernel runtime for a statically recompiled title",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		xlog.SetLevel(cfg.LogLevel)
	},
}

func main() {
	config.BindFlags(rootCmd.PersistentFlags(), cfg)
	rootCmd.AddCommand(runCmd, verifyArchiveCmd, extractCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
