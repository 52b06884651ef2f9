package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, ok := debug.ReadBuildInfo()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "gosh (unknown build)")
				return nil
			}

			version := info.Main.Version
			if version == "" {
				version = "(devel)"
			}
			revision := ""
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					revision = setting.Value
				}
			}

			if revision != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "gosh %s %s (%s)\n", version, info.GoVersion, revision)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gosh %s %s\n", version, info.GoVersion)
			return nil
		},
	}
}
