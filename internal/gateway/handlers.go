package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

// turnTimeout bounds one full conversational turn, retries included.
const turnTimeout = 2 * time.Minute

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// registerRPCHandlers sets up the method table for the read loop.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.message", s.rpcChatMessage)
	s.Handle("chat.image", s.rpcChatImage)
	s.Handle("chat.orderDetails", s.rpcOrderDetails)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		OK:            true,
		Version:       s.version,
		ActiveSockets: s.clients.Count(),
	})
}

type chatMessageParams struct {
	Text string `json:"text"`
}

func (s *Server) rpcChatMessage(rc *RequestContext) {
	var p chatMessageParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(p.Text) == "" {
		rc.RespondError("invalid_params", "text is required")
		return
	}

	entry, _ := s.runner.Sessions().GetOrCreate(rc.Client.SessionID)
	rc.Respond(map[string]bool{"accepted": true})

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()
	s.runner.HandleMessage(ctx, entry, p.Text, &wsEmitter{client: rc.Client, seq: &s.eventSeq})
}

type chatImageParams struct {
	URL string `json:"url"`
}

func (s *Server) rpcChatImage(rc *RequestContext) {
	var p chatImageParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.URL == "" {
		rc.RespondError("invalid_params", "url is required")
		return
	}

	entry, _ := s.runner.Sessions().GetOrCreate(rc.Client.SessionID)
	rc.Respond(map[string]bool{"accepted": true})

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()
	s.runner.HandleImage(ctx, entry, p.URL, &wsEmitter{client: rc.Client, seq: &s.eventSeq})
}

func (s *Server) rpcOrderDetails(rc *RequestContext) {
	var details domain.OrderDetails
	if err := rc.Params(&details); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	entry, _ := s.runner.Sessions().GetOrCreate(rc.Client.SessionID)
	rc.Respond(map[string]bool{"accepted": true})

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()
	s.runner.HandleOrderDetails(ctx, entry, details, &wsEmitter{client: rc.Client, seq: &s.eventSeq})
}
