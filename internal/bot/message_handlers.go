package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tldr/internal/markdown"
	"tldr/internal/source"
	"tldr/internal/widget"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"mvdan.cc/xurls/v2"
)

const tldrCommand = "/tldr"

var (
	welcomeText = markdown.Bold("TL;DR bot") + "\n\n" +
		markdown.EscapeV2("Send /tldr <page URL> <CSS selector> and I will summarize the matching part of the page.") +
		"\n\n" + markdown.Italic("Example: /tldr https://example.com/post #article")

	usageText = markdown.EscapeV2("Usage: /tldr <page URL> <CSS selector>")

	fetchFailedText = markdown.EscapeV2("❌ Could not fetch the page.")
)

func (b *Bot) handleMessage(ctx context.Context, msg *models.Message) error {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	switch {
	case text == "/start" || text == "/help":
		return b.sendText(ctx, chatID, welcomeText)
	case isTLDRCommand(text):
		return b.handleTLDRCommand(ctx, chatID, text)
	default:
		return b.sendText(ctx, chatID, usageText)
	}
}

func (b *Bot) handleTLDRCommand(ctx context.Context, chatID int64, text string) error {
	pageURL, selector, ok := parseTLDRCommand(text)
	if !ok {
		return b.sendText(ctx, chatID, usageText)
	}

	var doc *source.Resolver
	err := b.withSpinner(ctx, chatID, func() error {
		fetched, fetchErr := b.fetcher.FetchURL(ctx, pageURL)
		if fetchErr != nil {
			return fetchErr
		}
		doc = source.NewResolver(fetched)
		return nil
	})
	if err != nil {
		errs := []error{fmt.Errorf("fetch page: %w", err)}

		if sendErr := b.sendText(ctx, chatID, fetchFailedText); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	opts := b.widgetOpts
	opts.Selector = selector

	var messageID int
	err = b.rateLimiter.Do(ctx, chatID, func(ctx context.Context) error {
		sent, sendErr := b.api.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:      chatID,
			Text:        renderCard(cardView{Selector: selector}),
			ParseMode:   models.ParseModeMarkdown,
			ReplyMarkup: cardKeyboard(false),
		})
		if sendErr != nil {
			return sendErr
		}
		messageID = sent.ID
		return nil
	})
	if err != nil {
		return fmt.Errorf("send card: %w", err)
	}

	key := cardKey{chatID: chatID, messageID: messageID}
	w := widget.New(opts, doc, b.backends, newCard(b, key, selector), b.log)

	b.log.InfoContext(ctx, "Widget is attached",
		"chatID", chatID,
		"messageID", messageID,
		"pageURL", pageURL,
		"selector", selector,
		"triggerMode", opts.Mode.String())

	if opts.Mode == widget.TriggerManual {
		b.storeCard(key, w)
		w.Attach(ctx)
		return nil
	}

	return b.withSpinner(ctx, chatID, func() error {
		w.Attach(ctx)
		return nil
	})
}

func isTLDRCommand(text string) bool {
	command, _, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")

	return command == tldrCommand
}

// parseTLDRCommand extracts the first http(s) URL; the remaining text is the selector.
func parseTLDRCommand(text string) (string, string, bool) {
	_, rest, _ := strings.Cut(strings.TrimSpace(text), " ")

	for _, candidate := range xurls.Strict().FindAllString(rest, -1) {
		u, err := url.Parse(candidate)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}

		selector := strings.TrimSpace(strings.Replace(rest, candidate, "", 1))
		return candidate, selector, true
	}

	return "", "", false
}
