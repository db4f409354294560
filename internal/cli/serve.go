package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/agent"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/commerce"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/gateway"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}
			if cfg.Server.UploadDir == "" || cfg.Server.UploadDir == "uploads" {
				cfg.Server.UploadDir = paths.Uploads
			}

			// Conversation store (SQLite or in-memory)
			var conversations agent.ConversationStore
			if cfg.Session.Store == "sqlite" {
				dbPath := filepath.Join(paths.Data, "salesbot.db")
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				conversations = store.NewSQLiteConversationStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite conversation store")
			} else {
				conversations = store.NewMemoryConversationStore()
				log.Info().Msg("using in-memory conversation store")
			}

			shop := commerce.New(cfg.Woo, log)
			if !shop.IsConfigured() {
				log.Warn().Msg("woocommerce not configured — catalog tools run in demo mode")
			}

			model := llm.NewOpenAIClient(cfg.OpenAI, log)
			if cfg.OpenAI.APIKey == "" {
				log.Warn().Msg("no OpenAI API key — chat turns will fail")
			}

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			tools := agent.NewToolset(shop, rng, log)
			bridge := agent.NewBridge(model, tools, log)
			registry := agent.NewRegistry(conversations, cfg.Session, log)
			runner := agent.NewRunner(registry, bridge, shop, model, conversations, cfg.Session, rng, log)

			srv := gateway.New(cfg, runner, shop, conversations, log)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
