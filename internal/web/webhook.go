package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"whatsapp-autoresponder/internal/membership"
	"whatsapp-autoresponder/internal/responder"
)

// Submitter accepts inbound messages. *responder.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, msg responder.Inbound) (*responder.Future, error)
}

type webhookRequest struct {
	Message string `json:"message"`
	Sender  *struct {
		Phone json.RawMessage `json:"phone"`
		Name  string          `json:"name"`
	} `json:"sender"`
}

type webhookReply struct {
	Response  string          `json:"response"`
	Recipient json.RawMessage `json:"recipient"`
}

type webhookSkipped struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Webhook answers messages posted by an external chat gateway. The reply is
// returned in the response body instead of being sent anywhere.
type Webhook struct {
	sub Submitter
	log zerolog.Logger
}

// NewWebhook creates a Webhook feeding sub.
func NewWebhook(sub Submitter, log zerolog.Logger) *Webhook {
	return &Webhook{sub: sub, log: log}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if req.Message == "" || req.Sender == nil {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	phone := phoneText(req.Sender.Phone)
	if phone == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	id := membership.NewIdentity(phone, req.Sender.Name)
	if id.Phone == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	future, err := h.sub.Submit(r.Context(), responder.Inbound{
		Sender: id,
		Chat:   phone,
		Body:   req.Message,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Error processing webhook")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	res, err := future.Wait(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Error processing webhook")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch res.Outcome {
	case responder.Replied:
		respondJSON(w, http.StatusOK, webhookReply{Response: res.Reply, Recipient: req.Sender.Phone})
	case responder.AlreadyServed, responder.Unauthorized:
		respondJSON(w, http.StatusOK, webhookSkipped{Status: "skipped", Reason: res.Reason})
	case responder.Ignored:
		if res.Err != nil {
			h.log.Error().Err(res.Err).Msg("Error processing webhook")
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		respondJSON(w, http.StatusOK, webhookSkipped{Status: "skipped", Reason: res.Reason})
	default:
		h.log.Error().Err(res.Err).Stringer("outcome", res.Outcome).Msg("Error processing webhook")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// phoneText reads sender.phone, which gateways post either as a string or
// as a bare number. Anything else, zero and the empty string read as "".
func phoneText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 'n', 't', 'f', '{', '[':
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	if f, err := n.Float64(); err != nil || f == 0 {
		return ""
	}
	return n.String()
}
