package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"tldr/internal/ratelimiter"
	"tldr/internal/source"
	"tldr/internal/widget"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type cardKey struct {
	chatID    int64
	messageID int
}

// Bot hosts TL;DR widgets as Telegram card messages.
type Bot struct {
	api          *tgbot.Bot
	rateLimiter  *ratelimiter.RateLimiter
	fetcher      *source.Fetcher
	backends     widget.Backends
	widgetOpts   widget.Options
	allowedUsers []int64
	mu           sync.Mutex
	cards        map[cardKey]*widget.Widget
	log          *slog.Logger
}

func New(
	token string,
	fetcher *source.Fetcher,
	backends widget.Backends,
	widgetOpts widget.Options,
	allowedUsers []int64,
	log *slog.Logger,
	opts ...tgbot.Option,
) (*Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is empty")
	}

	b := &Bot{
		rateLimiter:  ratelimiter.New(log),
		fetcher:      fetcher,
		backends:     backends,
		widgetOpts:   widgetOpts,
		allowedUsers: allowedUsers,
		cards:        make(map[cardKey]*widget.Widget),
		log:          log,
	}

	opts = append([]tgbot.Option{tgbot.WithDefaultHandler(b.handleUpdate)}, opts...)

	api, err := tgbot.New(token, opts...)
	if err != nil {
		b.rateLimiter.Stop()
		return nil, fmt.Errorf("create bot API: %w", err)
	}
	b.api = api

	return b, nil
}

// Start blocks until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.api.Start(ctx)
	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		var userID int64
		if msg.From != nil {
			userID = msg.From.ID
		}

		if !b.userAllowed(userID) {
			b.log.DebugContext(ctx, "User is not allowed",
				"userID", userID,
				"chatID", msg.Chat.ID,
				"chatType", msg.Chat.Type)

			return
		}

		if err := b.handleMessage(ctx, msg); err != nil {
			b.log.ErrorContext(ctx, "Failed to handle message",
				"error", err,
				"chatID", msg.Chat.ID,
				"userID", userID,
				"messageID", msg.ID)
		}

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery

		if !b.userAllowed(cb.From.ID) {
			b.log.DebugContext(ctx, "User is not allowed",
				"userID", cb.From.ID,
				"data", cb.Data)

			return
		}

		if err := b.handleCallbackQuery(ctx, cb); err != nil {
			b.log.ErrorContext(ctx, "Failed to handle callback query",
				"error", err,
				"userID", cb.From.ID,
				"data", cb.Data)
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) storeCard(key cardKey, w *widget.Widget) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cards[key] = w
}

func (b *Bot) card(key cardKey) (*widget.Widget, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.cards[key]
	return w, ok
}

func (b *Bot) forgetCard(key cardKey) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.cards, key)
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	return b.rateLimiter.Do(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: models.ParseModeMarkdown,
		})
		return err
	})
}
