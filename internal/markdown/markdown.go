package markdown

import "strings"

// Special characters of Telegram MarkdownV2, see https://core.telegram.org/bots/api#markdownv2-style.
const specialChars = "_*[]()~`>#+-=|{}.!\\"

var escaper = newEscaper()

func newEscaper() *strings.Replacer {
	pairs := make([]string, 0, 2*len(specialChars))
	for _, c := range specialChars {
		pairs = append(pairs, string(c), `\`+string(c))
	}

	return strings.NewReplacer(pairs...)
}

func EscapeV2(input string) string {
	return escaper.Replace(input)
}

func Bold(input string) string {
	return "*" + EscapeV2(input) + "*"
}

func Italic(input string) string {
	return "_" + EscapeV2(input) + "_"
}
