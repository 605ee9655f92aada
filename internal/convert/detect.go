package convert

import (
	"net/http"
	"strings"

	"github.com/memohai/sticker-export-bot/internal/sticker"
)

const sniffLen = 512

// Detect classifies data by its leading bytes. File names and declared types are never consulted.
func Detect(data []byte) sticker.Detection {
	if len(data) == 0 {
		return sticker.Detection{Kind: sticker.KindUnrecognized}
	}
	header := data
	if len(header) > sniffLen {
		header = header[:sniffLen]
	}
	mime := normalizeMime(http.DetectContentType(header))
	if mime == "application/octet-stream" {
		mime = ""
	}
	major, _, _ := strings.Cut(mime, "/")
	switch major {
	case "image":
		return sticker.Detection{Kind: sticker.KindImage, MIME: mime}
	case "video":
		return sticker.Detection{Kind: sticker.KindVideo, MIME: mime}
	default:
		return sticker.Detection{Kind: sticker.KindUnrecognized, MIME: mime}
	}
}

func normalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}
