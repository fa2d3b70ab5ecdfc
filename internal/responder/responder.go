// Package responder implements the message to reply pipeline: gate the
// sender, generate a reply, send it, and remember who was answered.
package responder

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"whatsapp-autoresponder/internal/membership"
)

// SendFailureText is sent, best effort, when delivering the generated reply
// failed.
const SendFailureText = "Sorry, I encountered an error while processing your message. Please try again."

var (
	// ErrUnauthorized means the sender is not on the allow-list.
	ErrUnauthorized = errors.New("sender not allowed")
	// ErrAlreadyServed means the sender already got a reply in this process.
	ErrAlreadyServed = errors.New("sender already served")
	// ErrSendFailed means the reply could not be delivered.
	ErrSendFailed = errors.New("reply not delivered")
)

// Inbound is one received chat message.
type Inbound struct {
	Sender membership.Identity
	// Chat is the transport address replies go to.
	Chat      string
	Body      string
	Broadcast bool // group, status or broadcast list
}

// Generator produces reply text. It never fails; failures come back as a
// canned reply.
type Generator interface {
	Generate(ctx context.Context, message string) string
}

// Sender delivers text to a chat.
type Sender interface {
	SendText(ctx context.Context, chat, text string) error
}

// Typer is implemented by senders that can show a typing indicator.
type Typer interface {
	Composing(ctx context.Context, chat string) error
}

// Outcome says what Handle did with a message.
type Outcome int

const (
	Ignored Outcome = iota
	Unauthorized
	AlreadyServed
	Replied
	SendFailed
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Unauthorized:
		return "unauthorized"
	case AlreadyServed:
		return "already_served"
	case Replied:
		return "replied"
	case SendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

// Result is returned for every handled message.
type Result struct {
	Outcome Outcome
	Reply   string // the generated text, set for Replied and SendFailed
	Reason  string // why the message was ignored
	Err     error
}

// Options configure a Responder.
type Options struct {
	ShowTyping bool
}

// Responder answers each permitted sender at most once.
type Responder struct {
	gate   *membership.Gate
	seen   *membership.SeenSet
	gen    Generator
	sender Sender
	opts   Options
	log    zerolog.Logger
}

// New creates a Responder. The seen set is owned by the caller so it can be
// shared or inspected.
func New(gate *membership.Gate, seen *membership.SeenSet, gen Generator, sender Sender, opts Options, log zerolog.Logger) *Responder {
	return &Responder{
		gate:   gate,
		seen:   seen,
		gen:    gen,
		sender: sender,
		opts:   opts,
		log:    log,
	}
}

// Handle processes one message and sends at most one reply.
func (r *Responder) Handle(ctx context.Context, msg Inbound) Result {
	if msg.Broadcast {
		return Result{Outcome: Ignored, Reason: "Group or broadcast message"}
	}
	if strings.TrimSpace(msg.Body) == "" {
		return Result{Outcome: Ignored, Reason: "Empty message"}
	}

	log := r.log.With().Str("phone", msg.Sender.Phone).Str("name", msg.Sender.Name).Logger()

	if !r.gate.IsAllowed(msg.Sender) {
		log.Warn().Msg("Unauthorized access attempt")
		return Result{Outcome: Unauthorized, Reason: "Sender is not allowed to use this bot", Err: ErrUnauthorized}
	}

	log.Info().Str("body", msg.Body).Msg("Message received")

	if r.seen.Has(msg.Sender) {
		log.Info().Msg("User already received a message, skipping")
		return Result{Outcome: AlreadyServed, Reason: "Message already sent to this user", Err: ErrAlreadyServed}
	}

	if t, ok := r.sender.(Typer); ok && r.opts.ShowTyping {
		if err := t.Composing(ctx, msg.Chat); err != nil {
			log.Debug().Err(err).Msg("Failed to send typing indicator")
		}
	}

	log.Debug().Msg("Generating AI response")
	reply := r.gen.Generate(ctx, msg.Body)

	if err := r.sender.SendText(ctx, msg.Chat, reply); err != nil {
		log.Error().Err(err).Msg("Error sending AI response")
		if ferr := r.sender.SendText(ctx, msg.Chat, SendFailureText); ferr != nil {
			log.Error().Err(ferr).Msg("Error sending error message")
		}
		return Result{Outcome: SendFailed, Reply: reply, Err: errors.Join(ErrSendFailed, err)}
	}

	r.seen.Add(msg.Sender)
	log.Info().Msg("AI response sent")
	return Result{Outcome: Replied, Reply: reply}
}

// Discard is a Sender that drops everything. The webhook uses it because its
// reply travels back in the HTTP response.
type Discard struct{}

// SendText implements Sender.
func (Discard) SendText(context.Context, string, string) error { return nil }
