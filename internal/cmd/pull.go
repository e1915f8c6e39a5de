package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/publish"
	"github.com/felixgeelhaar/blueprint/internal/version"
)

var pullCmd = &cobra.Command{
	Use:   "pull <reference>",
	Short: "Download a blueprint archive from an OCI registry",
	Long: `Download an archive pushed with 'blueprint export --publish-oci'. Registry
credentials come from the docker config, as for docker pull.

Example:
  blueprint pull ghcr.io/acme/shop-blueprint:v1
  blueprint pull localhost:5000/shop-blueprint:latest --insecure --out dist`,
	Args: cobra.ExactArgs(1),
	RunE: runPull,
}

var (
	pullOut      string
	pullInsecure bool
)

func init() {
	pullCmd.Flags().StringVarP(&pullOut, "out", "o", ".", "directory the archive is written to")
	pullCmd.Flags().BoolVar(&pullInsecure, "insecure", false, "allow plain-HTTP registries")

	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	archive, filename, err := publish.Fetch(cmd.Context(), publish.OCIOptions{
		Reference: args[0],
		Insecure:  pullInsecure || currentConfig().Publish.OCI.Insecure,
		UserAgent: version.GetInfo().UserAgent(),
	})
	if err != nil {
		var regErr *publish.RegistryError
		if errors.As(err, &regErr) {
			return regErr.Coded()
		}
		return err
	}

	path := filepath.Join(pullOut, filepath.Base(filename))
	if err := writeFileAtomic(path, archive); err != nil {
		return err
	}
	appLogger.Info("archive pulled", "reference", args[0], "path", path, "bytes", len(archive))
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pulled %s to %s (%d bytes)\n", args[0], path, len(archive))
	return nil
}
