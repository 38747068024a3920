package cli

import (
	"github.com/spf13/cobra"

	v "github.com/linnemanlabs/go-core/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		vi := v.Get()
		cmd.Printf("sift version %s (commit=%s, go=%s)\n", vi.Version, vi.Commit, vi.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
