package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show salesbot status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Salesbot %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Uploads: %s\n", paths.Uploads)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:  port=%d bind=%s\n", cfg.Server.Port, cfg.Server.Bind)
			fmt.Printf("Session: store=%s history=%d idle=%dm\n",
				cfg.Session.Store, cfg.Session.HistoryLimit, cfg.Session.IdleMinutes)

			if cfg.OpenAI.APIKey != "" {
				fmt.Printf("Model:   %s (vision: %s)\n", cfg.OpenAI.Model, cfg.OpenAI.VisionModel)
			} else {
				fmt.Println("Model:   (no API key)")
			}

			if cfg.Woo.BaseURL != "" {
				fmt.Printf("Store:   %s zoneShipping=%v\n", cfg.Woo.BaseURL, cfg.Woo.UseZoneShipping)
			} else {
				fmt.Println("Store:   (not configured — demo mode)")
			}

			if cfg.Facebook.PageAccessToken != "" {
				fmt.Println("FB:      messenger webhook enabled")
			} else {
				fmt.Println("FB:      (not configured)")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
