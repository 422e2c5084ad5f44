package bot

import (
	"context"
	"errors"
	"fmt"

	"tldr/internal/domain"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const expiredCardText = "This card has expired, send /tldr again."

func (b *Bot) handleCallbackQuery(ctx context.Context, cb *models.CallbackQuery) error {
	if cb.Data != summarizeCallbackData || cb.Message.Message == nil {
		return b.answerCallbackQuery(ctx, cb.ID, "")
	}

	key := cardKey{
		chatID:    cb.Message.Message.Chat.ID,
		messageID: cb.Message.Message.ID,
	}

	w, ok := b.card(key)
	if !ok {
		return b.answerCallbackQuery(ctx, cb.ID, expiredCardText)
	}

	var errs []error
	if err := b.answerCallbackQuery(ctx, cb.ID, ""); err != nil {
		errs = append(errs, fmt.Errorf("answer callback query: %w", err))
	}

	if err := b.withSpinner(ctx, key.chatID, func() error {
		if !w.Click(ctx) {
			b.log.DebugContext(ctx, "Click is ignored",
				"chatID", key.chatID,
				"messageID", key.messageID)
		}
		return nil
	}); err != nil {
		errs = append(errs, err)
	}

	// The trigger stays hidden after success, so the card can no longer be clicked.
	if w.State().Phase == domain.PhaseDone {
		b.forgetCard(key)
	}

	return errors.Join(errs...)
}

func (b *Bot) answerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	_, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
	return err
}
