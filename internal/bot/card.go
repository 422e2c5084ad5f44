package bot

import (
	"context"
	"strings"
	"sync"

	"tldr/internal/domain"
	"tldr/internal/markdown"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const cardTitle = "TL;DR"

type cardView struct {
	Selector       string
	Status         string
	StatusIsError  bool
	Result         string
	TriggerVisible bool
}

func renderCard(v cardView) string {
	var b strings.Builder
	b.WriteString(markdown.Bold(cardTitle))

	status := v.Status
	if v.StatusIsError {
		status = "❌ " + status
	}

	switch {
	case v.Status != "":
		b.WriteString("\n\n")
		b.WriteString(markdown.EscapeV2(status))
	case v.Result == "" && v.TriggerVisible:
		b.WriteString("\n\n")
		b.WriteString(markdown.Italic("Press Summarize to generate a summary of " + v.Selector))
	case v.Result == "":
		b.WriteString("\n\n")
		b.WriteString(markdown.Italic("Waiting..."))
	}

	if v.Result != "" {
		b.WriteString("\n\n")
		b.WriteString(markdown.EscapeV2(v.Result))
	}

	return b.String()
}

// card renders one widget by editing its Telegram message. The label and the
// result of a finished run, and the cleared result and error of a failed one,
// land in a single edit.
type card struct {
	bot   *Bot
	key   cardKey
	mu    sync.Mutex
	phase domain.Phase
	view  cardView
}

func newCard(b *Bot, key cardKey, selector string) *card {
	return &card{bot: b, key: key, view: cardView{Selector: selector}}
}

func (c *card) PublishPhase(ctx context.Context, phase domain.Phase) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()

	c.bot.log.DebugContext(ctx, "Phase is changed",
		"chatID", c.key.chatID,
		"messageID", c.key.messageID,
		"phase", phase.String())
}

// PublishStatus defers the edit in Done: the result follows.
func (c *card) PublishStatus(ctx context.Context, text string, isError bool) {
	c.update(ctx, domain.PhaseDone, func(v *cardView) {
		v.Status = text
		v.StatusIsError = isError
	})
}

// PublishResult defers the edit in Errored: the error status follows.
func (c *card) PublishResult(ctx context.Context, text string) {
	c.update(ctx, domain.PhaseErrored, func(v *cardView) {
		v.Result = text
	})
}

func (c *card) SetTriggerVisible(ctx context.Context, visible bool) {
	c.update(ctx, domain.PhaseIdle, func(v *cardView) {
		v.TriggerVisible = visible
	})
}

// update applies mutate and edits the message unless the card is in deferIn.
// PhaseIdle never defers.
func (c *card) update(ctx context.Context, deferIn domain.Phase, mutate func(v *cardView)) {
	c.mu.Lock()
	mutate(&c.view)
	view := c.view
	deferred := deferIn != domain.PhaseIdle && c.phase == deferIn
	c.mu.Unlock()

	if deferred {
		return
	}

	err := c.bot.rateLimiter.Do(ctx, c.key.chatID, func(ctx context.Context) error {
		_, err := c.bot.api.EditMessageText(ctx, &tgbot.EditMessageTextParams{
			ChatID:      c.key.chatID,
			MessageID:   c.key.messageID,
			Text:        renderCard(view),
			ParseMode:   models.ParseModeMarkdown,
			ReplyMarkup: cardKeyboard(view.TriggerVisible),
		})
		return err
	})
	if err != nil && !isNotModified(err) {
		c.bot.log.ErrorContext(ctx, "Failed to edit card",
			"error", err,
			"chatID", c.key.chatID,
			"messageID", c.key.messageID)
	}
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
