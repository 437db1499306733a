package cmd

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/StreetFDN/roboglobe/internal/config"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Open the dashboard in the browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.DashboardURL == "" {
			return fmt.Errorf("dashboard_url is not configured")
		}
		fmt.Printf("Opening %s\n", cfg.DashboardURL)
		return openBrowser(cfg.DashboardURL)
	},
}

// openBrowser launches the platform browser. Only http and https URLs are
// accepted.
func openBrowser(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open URL with scheme %q (only http/https allowed)", u.Scheme)
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", rawURL).Start()
	case "windows":
		// rundll32 avoids cmd /c start shell interpretation.
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL).Start()
	default:
		return exec.Command("xdg-open", rawURL).Start()
	}
}
