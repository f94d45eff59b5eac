package main

import (
	"runtime"
	"strings"

	"gemini/internal/engine"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and the compiled-in playback backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if lo.Must(cmd.Flags().GetBool("short")) {
				cmd.Println(version)
				return
			}
			names := lo.Map(engine.Backends(), func(b engine.Backend, _ int) string { return b.Name() })
			cmd.Printf("gemini %s\n", version)
			cmd.Printf("  go:       %s\n", runtime.Version())
			cmd.Printf("  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			cmd.Printf("  backends: %s\n", strings.Join(names, ", "))
		},
	}
	cmd.Flags().BoolP("short", "s", false, "Print only the version")
	return cmd
}
