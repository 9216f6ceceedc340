package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/mailgroups/internal/formatter"
	appmodels "github.com/mixelka/mailgroups/pkg/models"
)

// Bot represents the Telegram bot
type Bot struct {
	bot       *bot.Bot
	commands  *commands
	formatter *formatter.TelegramFormatter
	chatID    int64
	logger    *slog.Logger
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Token     string
	ChatID    int64 // the only chat the bot answers
	Service   Service
	Formatter *formatter.TelegramFormatter
	Logger    *slog.Logger
}

// NewBot creates a new Telegram bot
func NewBot(deps BotDeps) (*Bot, error) {
	logger := deps.Logger.With("component", "telegram_bot")
	b := &Bot{
		commands: &commands{
			service:   deps.Service,
			formatter: deps.Formatter,
			logger:    logger,
		},
		formatter: deps.Formatter,
		chatID:    deps.ChatID,
		logger:    logger,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithMiddlewares(b.operatorOnly),
	}

	tgBot, err := bot.New(deps.Token, opts...)
	if err != nil {
		return nil, err
	}

	b.bot = tgBot
	b.registerHandlers()

	return b, nil
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	for _, cmd := range []struct {
		name string
		run  func(context.Context, string) reply
	}{
		{"/groups", b.commands.groups},
		{"/summary", b.commands.summary},
		{"/people", b.commands.people},
		{"/unfollow", b.commands.unfollow},
		{"/ignored", b.commands.ignored},
		{"/company", b.commands.company},
		{"/owner", b.commands.owner},
		{"/start", b.commands.help},
		{"/help", b.commands.help},
	} {
		b.bot.RegisterHandler(bot.HandlerTypeMessageText, cmd.name, bot.MatchTypePrefix, b.command(cmd.run))
	}
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/check", bot.MatchTypePrefix, b.handleCheck)
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, b.handleCallback)
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot", "chat_id", b.chatID)
	b.bot.Start(ctx)
}

// NotifySyncFailure posts a sync failure warning to the operator chat
func (b *Bot) NotifySyncFailure(account *appmodels.EmailAccount, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, sendErr := b.sendMessage(ctx, b.chatID, b.formatter.FormatSyncFailure(account.Email, err)); sendErr != nil {
		b.logger.Error("failed to send sync failure alert", "account_id", account.ID, "error", sendErr)
	}
}

// operatorOnly drops updates that do not come from the configured chat
func (b *Bot) operatorOnly(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
		if chatOf(update) != b.chatID {
			b.logger.Debug("ignoring update from foreign chat", "chat_id", chatOf(update))
			return
		}
		next(ctx, tgBot, update)
	}
}

func chatOf(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}

// defaultHandler handles unknown messages
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	if update.Message.Text != "" && update.Message.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", update.Message.Text)
	}
}

// command adapts a command to a Telegram handler
func (b *Bot) command(run func(context.Context, string) reply) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
		msg := update.Message
		b.send(ctx, msg.Chat.ID, run(ctx, commandArgs(msg.Text)))
	}
}

// handleCheck handles /check. The message carries a password and is
// deleted before anything else happens.
func (b *Bot) handleCheck(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	if err := b.deleteMessage(ctx, msg.Chat.ID, msg.ID); err != nil {
		b.logger.Warn("failed to delete check message", "error", err)
	}

	b.send(ctx, msg.Chat.ID, b.commands.check(ctx, commandArgs(msg.Text)))
}

// handleCallback handles inline button callbacks
func (b *Bot) handleCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	// answered before the action runs, a summary can take far longer than
	// Telegram waits for an answer
	cb, answer, ok := b.commands.parseCallback(callback.Data)
	if err := b.answerCallback(ctx, callback.ID, answer, false); err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}
	if ok {
		b.send(ctx, b.chatID, b.commands.runCallback(ctx, cb))
	}
}
