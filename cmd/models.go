package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crawlkit/crawlkit/internal/models"
)

// newModelsCmd creates the 'models' command group for managing optional
// extraction model artifacts.
func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage optional model artifacts",
		Long: `Downloads, lists and clears the model artifacts some extraction
strategies use. The artifacts come from a signed manifest and are stored
under the cache directory.`,
	}
	cmd.AddCommand(newModelsDownloadCmd())
	cmd.AddCommand(newModelsListCmd())
	cmd.AddCommand(newModelsClearCmd())
	return cmd
}

func newManager(cmd *cobra.Command) (*models.Manager, error) {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	return models.New(
		a.cfg.Models.ManifestURL,
		a.cfg.Models.Dir,
		a.cfg.Models.Parallel,
		a.logger,
	), nil
}

func newModelsDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download model artifacts from the manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManager(cmd)
			if err != nil {
				return err
			}
			manifest, err := mgr.FetchManifest(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.DownloadAll(cmd.Context(), manifest); err != nil {
				return err
			}
			fmt.Printf("%d artifact(s) ready\n", len(manifest.Artifacts))
			return nil
		},
	}
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List locally downloaded model artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManager(cmd)
			if err != nil {
				return err
			}
			local, err := mgr.List()
			if err != nil {
				return err
			}
			if len(local) == 0 {
				fmt.Println("no models downloaded")
				return nil
			}
			for _, m := range local {
				fmt.Printf("%s\t%d bytes\t%s\n", m.Name, m.Size, m.ModTime.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newModelsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all locally downloaded model artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManager(cmd)
			if err != nil {
				return err
			}
			if err := mgr.Clear(); err != nil {
				return err
			}
			fmt.Println("models cleared")
			return nil
		},
	}
}
