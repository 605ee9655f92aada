package telegram

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/sticker-export-bot/internal/dialogue"
	"github.com/memohai/sticker-export-bot/internal/sticker"
)

func TestToEvent(t *testing.T) {
	t.Parallel()

	private := &tgbotapi.Chat{ID: 10, Type: "private"}
	group := &tgbotapi.Chat{ID: -20, Type: "supergroup"}
	user := &tgbotapi.User{ID: 7}

	tests := []struct {
		name string
		msg  *tgbotapi.Message
		ok   bool
		want func(t *testing.T, got dialogue.Event)
	}{
		{name: "nil", msg: nil},
		{name: "no chat", msg: &tgbotapi.Message{Text: "hi"}},
		{
			name: "command with mention",
			msg: &tgbotapi.Message{
				MessageID: 3, Chat: private, From: user, Text: "/Single@StickerBot",
				Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 18}},
			},
			ok: true,
			want: func(t *testing.T, got dialogue.Event) {
				assert.Equal(t, "single", got.Command)
				assert.True(t, got.Private)
				assert.Equal(t, int64(7), got.UserID)
				assert.Equal(t, 3, got.MessageID)
			},
		},
		{
			name: "sticker",
			msg: &tgbotapi.Message{
				Chat: private, From: user,
				Sticker: &tgbotapi.Sticker{FileID: "fid", FileUniqueID: "uid", SetName: "cats"},
			},
			ok: true,
			want: func(t *testing.T, got dialogue.Event) {
				require.NotNil(t, got.Sticker)
				assert.Equal(t, sticker.AssetRef{FileID: "fid", UniqueID: "uid", SetName: "cats"}, *got.Sticker)
				assert.False(t, got.HasMedia)
			},
		},
		{
			name: "photo is media",
			msg:  &tgbotapi.Message{Chat: private, From: user, Photo: []tgbotapi.PhotoSize{{FileID: "p"}}},
			ok:   true,
			want: func(t *testing.T, got dialogue.Event) {
				assert.Nil(t, got.Sticker)
				assert.True(t, got.HasMedia)
			},
		},
		{
			name: "group",
			msg:  &tgbotapi.Message{Chat: group, From: user, Text: "hello"},
			ok:   true,
			want: func(t *testing.T, got dialogue.Event) {
				assert.False(t, got.Private)
				assert.Equal(t, "hello", got.Text)
				assert.Empty(t, got.Command)
			},
		},
		{
			name: "no sender falls back to chat",
			msg:  &tgbotapi.Message{Chat: private, Text: "x"},
			ok:   true,
			want: func(t *testing.T, got dialogue.Event) {
				assert.Equal(t, int64(10), got.UserID)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toEvent(tt.msg)
			require.Equal(t, tt.ok, ok)
			if tt.want != nil {
				tt.want(t, got)
			}
		})
	}
}

func TestPackFromSet(t *testing.T) {
	t.Parallel()

	pk := packFromSet(tgbotapi.StickerSet{
		Name:  "cats",
		Title: "Cats",
		Stickers: []tgbotapi.Sticker{
			{FileID: "f1", FileUniqueID: "u1"},
			{FileID: "f2", FileUniqueID: "u2"},
		},
	})
	assert.Equal(t, "cats", pk.Name)
	assert.Equal(t, "Cats", pk.Title)
	require.Len(t, pk.Assets, 2)
	assert.Equal(t, sticker.AssetRef{FileID: "f2", UniqueID: "u2", SetName: "cats"}, pk.Assets[1])
}

func TestFileURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://api.telegram.org/file/bot123:abc/stickers/file_1.webp",
		FileURL("https://api.telegram.org/", "123:abc", "stickers/file_1.webp"))
}

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/file/botT0K/stickers/a.webp":
			assert.Contains(t, r.Header.Get("User-Agent"), "sticker-export-bot/")
			_, _ = w.Write([]byte("RIFF"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := &Client{bot: &tgbotapi.BotAPI{Token: "T0K"}, http: srv.Client(), apiURL: srv.URL, logger: slog.Default()}

	data, err := c.Download(context.Background(), "stickers/a.webp")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)

	_, err = c.Download(context.Background(), "stickers/missing.webp")
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestDownloadRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{'x'}, 64))
	}))
	t.Cleanup(srv.Close)

	c := &Client{bot: &tgbotapi.BotAPI{Token: "T0K"}, http: srv.Client(), apiURL: srv.URL, maxDownload: 16, logger: slog.Default()}

	_, err := c.Download(context.Background(), "stickers/big.webm")
	assert.ErrorContains(t, err, "download exceeds 16 bytes")

	c.maxDownload = 64
	data, err := c.Download(context.Background(), "stickers/big.webm")
	require.NoError(t, err)
	assert.Len(t, data, 64)
}

func TestMarkdownToTelegramHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a < b & c", "a &lt; b &amp; c"},
		{"**bold** and *it*", "<b>bold</b> and <i>it</i>"},
		{"see [repo](https://example.com/x?a=1&b=2)", `see <a href="https://example.com/x?a=1&amp;b=2">repo</a>`},
		{"- /single export\n- /pack export", "• /single export\n• /pack export"},
		{"run `a<b` now", "run <code>a&lt;b</code> now"},
	}
	for _, tt := range tests {
		if got := markdownToTelegramHTML(tt.in); got != tt.want {
			t.Errorf("markdownToTelegramHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlogBotLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := &slogBotLogger{log: slog.New(slog.NewTextHandler(&buf, nil))}
	l.Printf("Failed to get updates, retrying in %d seconds...\n", 3)

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "retrying in 3 seconds")
	assert.Contains(t, buf.String(), "source=tgbotapi")
}
