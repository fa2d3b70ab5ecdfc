package whatsapp

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"whatsapp-autoresponder/internal/membership"
	"whatsapp-autoresponder/internal/responder"
)

// Convert turns a whatsmeow message event into a responder message. It
// reports false for events the bot never looks at: its own messages and
// messages without text. resolve maps a LID sender to a phone number JID
// when the event itself carries no alternate address; it may be nil.
func Convert(v *events.Message, resolve func(types.JID) types.JID) (responder.Inbound, bool) {
	if v == nil || v.Info.IsFromMe {
		return responder.Inbound{}, false
	}
	text := extractText(v.Message)
	if text == "" {
		return responder.Inbound{}, false
	}

	sender := senderPhoneJID(v.Info.MessageSource, resolve)
	return responder.Inbound{
		Sender:    membership.NewIdentity(sender.User, v.Info.PushName),
		Chat:      v.Info.Chat.ToNonAD().String(),
		Body:      text,
		Broadcast: isBroadcast(v.Info.MessageSource),
	}, true
}

// extractText reads plain and extended text messages.
func extractText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if text := m.GetConversation(); text != "" {
		return text
	}
	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func senderPhoneJID(src types.MessageSource, resolve func(types.JID) types.JID) types.JID {
	sender := src.Sender.ToNonAD()
	if sender.Server != types.HiddenUserServer {
		return sender
	}
	if alt := src.SenderAlt.ToNonAD(); alt.Server == types.DefaultUserServer {
		return alt
	}
	if resolve != nil {
		return resolve(sender).ToNonAD()
	}
	return sender
}

func isBroadcast(src types.MessageSource) bool {
	if src.IsGroup {
		return true
	}
	switch src.Chat.Server {
	case types.GroupServer, types.BroadcastServer, types.NewsletterServer:
		return true
	}
	return false
}
