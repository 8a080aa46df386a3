package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crawlkit/crawlkit/internal/setup"
)

// newSetupCmd creates the 'setup' subcommand, which provisions directories
// and verifies the headless browser.
func newSetupCmd() *cobra.Command {
	var (
		browserPath string
		skipWarmup  bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Provision directories and verify the headless browser",
		Long: `Creates the application config, cache and model directories, locates a
Chrome/Chromium executable and launches a short headless session to
confirm it works. Run this once after installation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if browserPath == "" {
				browserPath = a.cfg.Browser.ExecPath
			}
			rep, err := setup.Run(cmd.Context(), setup.Options{
				BrowserPath: browserPath,
				SkipWarmup:  skipWarmup,
			}, a.logger)
			if err != nil {
				return err
			}
			fmt.Println("Config directory: ", rep.ConfigDir)
			fmt.Println("Cache directory:  ", rep.CacheDir)
			fmt.Println("Models directory: ", rep.ModelsDir)
			if rep.BrowserPath == "" {
				fmt.Println("Browser:           not found (plain HTTP crawling only)")
				return nil
			}
			fmt.Println("Browser:          ", rep.BrowserPath)
			switch {
			case skipWarmup:
				fmt.Println("Warmup:            skipped")
			case rep.WarmupOK:
				fmt.Println("Warmup:            ok")
			default:
				fmt.Printf("Warmup:            failed (%v)\n", rep.WarmupErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&browserPath, "browser-path", "", "path to the Chrome/Chromium executable")
	cmd.Flags().BoolVar(&skipWarmup, "skip-warmup", false, "skip the headless browser launch probe")
	return cmd
}
