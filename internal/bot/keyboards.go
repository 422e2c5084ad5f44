package bot

import "github.com/go-telegram/bot/models"

const summarizeCallbackData = "tldr_summarize"

// cardKeyboard returns nil when hidden; editing without markup removes the keyboard.
func cardKeyboard(visible bool) models.ReplyMarkup {
	if !visible {
		return nil
	}

	return models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "📝 Summarize", CallbackData: summarizeCallbackData}},
		},
	}
}
