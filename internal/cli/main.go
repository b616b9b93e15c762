package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "gifcast",
		Short:        "Convert trimmed video segments into subtitled GIFs over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().String("addr", ":8080", "Listen address")
	root.Flags().String("uploads", "uploads", "Staged uploads directory")
	root.Flags().String("outputs", "outputs", "Rendered GIF directory")
	root.Flags().String("work", ".cache/work", "Scratch directory for audio artifacts")
	root.Flags().Int64("max-upload-mb", 50, "Upload size limit in megabytes")
	root.Flags().Bool("dev", false, "Return detailed error messages")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
