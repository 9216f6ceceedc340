package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// send posts a command reply, the keyboard under its last message
func (b *Bot) send(ctx context.Context, chatID int64, r reply) {
	for i, t := range r.texts {
		var err error
		if i == len(r.texts)-1 && r.keyboard != nil {
			_, err = b.sendMessageWithKeyboard(ctx, chatID, t, r.keyboard)
		} else {
			_, err = b.sendMessage(ctx, chatID, t)
		}
		if err != nil {
			b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

// sendMessage sends a message to a chat
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) (*models.Message, error) {
	return b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
}

// sendMessageWithKeyboard sends a message with inline keyboard
func (b *Bot) sendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	return b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	})
}

// deleteMessage deletes a message
func (b *Bot) deleteMessage(ctx context.Context, chatID int64, msgID int) error {
	_, err := b.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: msgID,
	})
	return err
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	})
	return err
}
