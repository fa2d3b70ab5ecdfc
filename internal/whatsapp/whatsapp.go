// Package whatsapp connects the responder to a WhatsApp multi-device
// session: it pairs the device, turns incoming events into responder
// messages and sends replies back.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"whatsapp-autoresponder/internal/logger"
	"whatsapp-autoresponder/internal/responder"
)

// ErrLoggedOut is returned by Run when the phone unlinks this device.
var ErrLoggedOut = errors.New("whatsapp session logged out")

// Submitter accepts inbound messages. *responder.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, msg responder.Inbound) (*responder.Future, error)
}

// Client is a paired WhatsApp device.
type Client struct {
	wa      *whatsmeow.Client
	store   *sqlstore.Container
	log     zerolog.Logger
	botName string

	// QR receives the pairing code. Defaults to stdout.
	QR io.Writer
}

// Open loads (or creates) the device session stored at dsn.
func Open(ctx context.Context, dsn, botName string, log zerolog.Logger) (*Client, error) {
	container, err := sqlstore.New(ctx, "sqlite3", dsn, logger.WhatsApp(log, "Database"))
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}
	return &Client{
		wa:      whatsmeow.NewClient(device, logger.WhatsApp(log, "Client")),
		store:   container,
		log:     log,
		botName: botName,
		QR:      os.Stdout,
	}, nil
}

// Run connects, pairs if needed, and feeds every inbound message to sub
// until ctx is done or the session is logged out.
func (c *Client) Run(ctx context.Context, sub Submitter) error {
	defer c.store.Close()

	loggedOut := make(chan struct{}, 1)
	handlerID := c.wa.AddEventHandler(c.eventHandler(ctx, sub, loggedOut))
	defer c.wa.RemoveEventHandler(handlerID)

	if err := c.connect(ctx); err != nil {
		return err
	}
	defer c.wa.Disconnect()

	select {
	case <-ctx.Done():
		c.log.Info().Msg("Disconnecting from WhatsApp")
		return nil
	case <-loggedOut:
		return ErrLoggedOut
	}
}

func (c *Client) connect(ctx context.Context) error {
	if c.wa.Store.ID != nil {
		if err := c.wa.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	}

	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			fmt.Fprintln(c.QR, "🔗 Scan the QR code below to connect your WhatsApp:")
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, c.QR)
			fmt.Fprintln(c.QR, "📱 Open WhatsApp on your phone > Linked Devices > Link a Device")
		case "success":
			c.log.Info().Msg("Device paired")
		default:
			c.log.Warn().Str("event", evt.Event).Msg("Pairing event")
			if evt.Error != nil {
				return fmt.Errorf("pairing failed: %w", evt.Error)
			}
		}
	}
	if c.wa.Store.ID == nil {
		return errors.New("pairing did not complete")
	}
	return nil
}

func (c *Client) eventHandler(ctx context.Context, sub Submitter, loggedOut chan<- struct{}) func(any) {
	return func(evt any) {
		switch v := evt.(type) {
		case *events.Connected:
			c.log.Info().Str("bot", c.botName).Msg("WhatsApp bot is ready and connected, waiting for messages")
		case *events.LoggedOut:
			c.log.Error().Stringer("reason", v.Reason).Msg("Logged out from WhatsApp")
			select {
			case loggedOut <- struct{}{}:
			default:
			}
		case *events.Message:
			msg, ok := Convert(v, c.resolvePhone(ctx))
			if !ok {
				return
			}
			if _, err := sub.Submit(ctx, msg); err != nil {
				c.log.Error().Err(err).Str("phone", msg.Sender.Phone).Msg("Failed to queue message")
			}
		}
	}
}

// resolvePhone maps a LID to its phone number JID through the device's LID
// store, returning the input unchanged if the mapping is unknown.
func (c *Client) resolvePhone(ctx context.Context) func(types.JID) types.JID {
	return func(lid types.JID) types.JID {
		pn, err := c.wa.Store.LIDs.GetPNForLID(ctx, lid)
		if err != nil || pn.IsEmpty() {
			return lid
		}
		return pn
	}
}

// SendText implements responder.Sender.
func (c *Client) SendText(ctx context.Context, chat, text string) error {
	jid, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("invalid chat %q: %w", chat, err)
	}
	_, err = c.wa.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

// Composing implements responder.Typer.
func (c *Client) Composing(ctx context.Context, chat string) error {
	jid, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("invalid chat %q: %w", chat, err)
	}
	return c.wa.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}
