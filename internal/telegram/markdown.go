package telegram

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reInlineCode = regexp.MustCompile("`([^`\\n]+?)`")
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reLink       = regexp.MustCompile(`\[([^\]]+?)\]\(([^)]+?)\)`)
	reListBullet = regexp.MustCompile(`(?m)^(\s*)[-+]\s`)
	reItalic     = regexp.MustCompile(`\*([^*\n]+?)\*`)
)

// markdownToTelegramHTML renders the small markdown subset used by bot replies as Telegram HTML.
//
// Supported: inline code, bold, italic, links and "-" bullets. Everything else is escaped.
func markdownToTelegramHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	var codes []string
	text = reInlineCode.ReplaceAllStringFunc(text, func(match string) string {
		codes = append(codes, reInlineCode.FindStringSubmatch(match)[1])
		return codePlaceholder(len(codes) - 1)
	})

	text = escapeHTML(text)
	text = reBold.ReplaceAllString(text, "<b>$1</b>")
	text = reLink.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = reListBullet.ReplaceAllString(text, "${1}• ")
	text = reItalic.ReplaceAllString(text, "<i>$1</i>")

	for i, code := range codes {
		text = strings.Replace(text, codePlaceholder(i), "<code>"+escapeHTML(code)+"</code>", 1)
	}
	return strings.TrimSpace(text)
}

func escapeHTML(text string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(text)
}

func codePlaceholder(i int) string {
	return "\x00IC" + strconv.Itoa(i) + "\x00"
}
