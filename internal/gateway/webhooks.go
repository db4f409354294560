package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/agent"
)

// graphAPIBase is the Messenger Send API endpoint.
const graphAPIBase = "https://graph.facebook.com/v17.0/me/messages"

// zapierPayload is the inbound automation shape. Data may arrive as an
// object or as a JSON-encoded string, depending on the sending zap.
type zapierPayload struct {
	Data json.RawMessage `json:"data"`
}

type zapierData struct {
	SenderPSID string `json:"sender_psid"`
	PSID       string `json:"psid"`
	SenderID   string `json:"senderId"`
	SenderID2  string `json:"sender_id"`
	Message    string `json:"message"`
	Text       string `json:"text"`
}

func (d zapierData) psid() string {
	for _, v := range []string{d.SenderPSID, d.PSID, d.SenderID, d.SenderID2} {
		if v != "" {
			return v
		}
	}
	return "anonymous"
}

func (d zapierData) text() string {
	if d.Message != "" {
		return d.Message
	}
	return d.Text
}

// handleZapier runs one synchronous turn for an automation platform:
// the reply travels back in the HTTP response, stripped of markup.
func (s *Server) handleZapier(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "MISSING_DATA"})
		return
	}

	var envelope zapierPayload
	raw := body
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		raw = envelope.Data
	}

	// A zap may double-encode the data object as a string.
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = []byte(asString)
	}

	var data zapierData
	if err := json.Unmarshal(raw, &data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "INVALID_JSON"})
		return
	}
	if data.text() == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "MISSING_DATA"})
		return
	}

	sessionID := "zap:" + data.psid()
	entry, _ := s.runner.Sessions().GetOrCreate(sessionID)

	em := &collectEmitter{}
	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()
	s.runner.HandleMessage(ctx, entry, data.text(), em)

	reply := agent.StripHTML(em.replyText(agent.WebhookFallbackReply))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessionId": sessionID, "reply": reply})
}

// handleFacebookVerify answers the Messenger webhook subscription
// challenge.
func (s *Server) handleFacebookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.cfg.Facebook.VerifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}

// fbWebhookEvent is the Messenger webhook envelope, trimmed to the
// fields we read.
type fbWebhookEvent struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Text        string `json:"text"`
				Attachments []struct {
					Type    string `json:"type"`
					Payload struct {
						URL string `json:"url"`
					} `json:"payload"`
				} `json:"attachments"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// handleFacebookReceive acknowledges immediately and processes the
// events in the background; Messenger retries aggressively on slow
// responses.
func (s *Server) handleFacebookReceive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))

	var event fbWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Warn().Err(err).Msg("unparseable messenger webhook")
		return
	}

	go s.processFacebookEvent(event)
}

func (s *Server) processFacebookEvent(event fbWebhookEvent) {
	for _, entry := range event.Entry {
		for _, msg := range entry.Messaging {
			senderID := msg.Sender.ID
			if senderID == "" {
				continue
			}

			imageURL := ""
			for _, att := range msg.Message.Attachments {
				if att.Type == "image" && att.Payload.URL != "" {
					imageURL = att.Payload.URL
					break
				}
			}
			if msg.Message.Text == "" && imageURL == "" {
				continue
			}

			s.runFacebookTurn(senderID, msg.Message.Text, imageURL)
		}
	}
}

func (s *Server) runFacebookTurn(senderID, text, imageURL string) {
	sessionID := "fb:" + senderID
	entry, _ := s.runner.Sessions().GetOrCreate(sessionID)
	log := s.log.Session(sessionID)

	s.fbSenderAction(senderID, "typing_on")
	defer s.fbSenderAction(senderID, "typing_off")

	em := &collectEmitter{}
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	if imageURL != "" {
		s.runner.HandleImage(ctx, entry, imageURL, em)
	} else {
		s.runner.HandleMessage(ctx, entry, text, em)
	}

	if len(em.messages) == 0 {
		s.fbSendText(senderID, agent.WebhookFallbackReply)
		return
	}
	for _, m := range em.messages {
		plain := agent.StripHTML(m.Text)
		if plain == "" {
			continue
		}
		// Short human-feeling pause, scaled to message length.
		delay := time.Duration(len(plain)*10) * time.Millisecond
		if delay < 400*time.Millisecond {
			delay = 400 * time.Millisecond
		}
		if delay > 1200*time.Millisecond {
			delay = 1200 * time.Millisecond
		}
		time.Sleep(delay)
		if err := s.fbSendText(senderID, plain); err != nil {
			log.Warn().Err(err).Msg("messenger send failed")
			return
		}
	}
}

// fbSendText delivers one plain-text message via the Send API.
func (s *Server) fbSendText(recipientID, text string) error {
	return s.fbCall(map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	})
}

// fbSenderAction toggles the Messenger typing indicator.
func (s *Server) fbSenderAction(recipientID, action string) {
	err := s.fbCall(map[string]any{
		"recipient":     map[string]string{"id": recipientID},
		"sender_action": action,
	})
	if err != nil {
		s.log.Debug().Err(err).Str("action", action).Msg("sender action failed")
	}
}

func (s *Server) fbCall(payload any) error {
	token := s.cfg.Facebook.PageAccessToken
	if token == "" {
		return fmt.Errorf("messenger not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := graphAPIBase + "?access_token=" + token
	resp, err := s.fbHTTP.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph api: HTTP %d", resp.StatusCode)
	}
	return nil
}
