package agent

import (
	"context"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
)

const (
	// chatCallTimeout bounds every chat round-trip; visionCallTimeout
	// is looser because image payloads take longer to process.
	chatCallTimeout   = 12 * time.Second
	visionCallTimeout = 15 * time.Second

	firstCallMaxTokens = 180
	chatTemperature    = 0.4
)

// TurnResult is the full outcome of one model turn.
type TurnResult struct {
	Reply    string
	UsedTool bool
	ToolName string

	Products  []domain.ProductRef
	Placed    *PlacedInfo
	Cancelled *CancelledInfo
}

// Bridge runs the two-phase tool-calling conversation: one call to
// let the model pick a tool, the tool execution, then one call to
// phrase the result. At most one tool runs per turn; extra calls in
// the model reply are dropped, which keeps a turn bounded to two
// model round-trips.
type Bridge struct {
	llm   llm.Client
	tools *Toolset
	log   *logging.Logger
}

// NewBridge wires a model client to the tool catalog.
func NewBridge(client llm.Client, tools *Toolset, log *logging.Logger) *Bridge {
	return &Bridge{llm: client, tools: tools, log: log.Sub("bridge")}
}

// RunTurn executes one conversational turn. onToolStart fires before a
// tool runs so the caller can send a hold notice; it may be nil.
func (b *Bridge) RunTurn(
	ctx context.Context,
	sess *domain.Session,
	history []domain.Message,
	summary, userText string,
	onToolStart func(tool string),
) (*TurnResult, error) {
	messages := buildMessages(history, summary, userText)
	temp := chatTemperature

	firstCtx, cancel := context.WithTimeout(ctx, chatCallTimeout)
	defer cancel()

	first, err := b.llm.Chat(firstCtx, llm.ChatRequest{
		Messages:    messages,
		Tools:       b.tools.Specs(),
		MaxTokens:   firstCallMaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	if len(first.ToolCalls) == 0 {
		return &TurnResult{Reply: first.Content}, nil
	}

	call := first.ToolCalls[0]
	if len(first.ToolCalls) > 1 {
		b.log.Debug().Str("session", sess.ID).Int("dropped", len(first.ToolCalls)-1).Msg("extra tool calls ignored")
	}
	if onToolStart != nil {
		onToolStart(call.Name)
	}

	result := b.tools.Execute(ctx, sess, call)

	followup := append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: first.Content, ToolCalls: []llm.ToolCall{call}},
		llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: result.PayloadJSON()},
	)
	secondCtx, cancelSecond := context.WithTimeout(ctx, chatCallTimeout)
	defer cancelSecond()

	second, err := b.llm.Chat(secondCtx, llm.ChatRequest{
		Messages:    followup,
		MaxTokens:   result.ReplyTokens,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Reply:     second.Content,
		UsedTool:  true,
		ToolName:  call.Name,
		Products:  result.Products,
		Placed:    result.Placed,
		Cancelled: result.Cancelled,
	}, nil
}
