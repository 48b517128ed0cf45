package bot

import (
	"strconv"

	"gopkg.in/telebot.v3"

	"pointsbot/internal/logger"
)

// ChatMessenger delivers event notifications to a chat. Destinations are
// chat IDs rendered as strings so the event engine stays transport-agnostic.
type ChatMessenger struct {
	bot *telebot.Bot
}

// NewChatMessenger wraps a telebot instance as a messaging collaborator.
func NewChatMessenger(b *telebot.Bot) *ChatMessenger {
	return &ChatMessenger{bot: b}
}

// Send delivers text to the destination chat, fire-and-forget.
func (m *ChatMessenger) Send(destination, text string) {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		logger.Debug("", "messenger_bad_destination", "destination="+destination)
		return
	}
	if _, err := m.bot.Send(&telebot.Chat{ID: chatID}, text); err != nil {
		logger.Debug("", "messenger_send_failed", "error="+err.Error())
	}
}
