package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/agent"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/commerce"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/store"
)

// consoleEmitter prints bot output to stdout with markup stripped.
type consoleEmitter struct{}

func (consoleEmitter) Message(m domain.Message, keepTyping bool) {
	fmt.Println(agent.StripHTML(m.Text))
}

func (consoleEmitter) Typing(bool) {}

func (consoleEmitter) OrderConfirmed(summary, eta, orderID string) {
	fmt.Printf("%s (order %s, delivery %s)\n", agent.StripHTML(summary), orderID, eta)
}

func (consoleEmitter) ShippingChoices(options []domain.ShippingOption) {
	for i, opt := range options {
		fmt.Printf("  %d. %s (%s)\n", i+1, opt.MethodTitle, opt.Total)
	}
}

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message to the assistant and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}
			if cfg.OpenAI.APIKey == "" {
				return fmt.Errorf("no OpenAI API key configured")
			}

			conversations := store.NewMemoryConversationStore()
			shop := commerce.New(cfg.Woo, log)
			model := llm.NewOpenAIClient(cfg.OpenAI, log)

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			tools := agent.NewToolset(shop, rng, log)
			bridge := agent.NewBridge(model, tools, log)
			registry := agent.NewRegistry(conversations, cfg.Session, log)
			runner := agent.NewRunner(registry, bridge, shop, model, conversations, cfg.Session, rng, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			entry, _ := registry.GetOrCreate(sessionID)
			runner.HandleMessage(ctx, entry, message, consoleEmitter{})
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "cli", "session ID for the conversation")

	return cmd
}
