// Package telegram connects the dialogue to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/sticker-export-bot/internal/boot"
	"github.com/memohai/sticker-export-bot/internal/dialogue"
	"github.com/memohai/sticker-export-bot/internal/export"
	"github.com/memohai/sticker-export-bot/internal/sticker"
	"github.com/memohai/sticker-export-bot/internal/version"
)

// Client implements dialogue.Messenger, dialogue.PackSource and export.FileSource on one bot.
type Client struct {
	bot         *tgbotapi.BotAPI
	http        *http.Client
	apiURL      string
	pollTimeout int
	maxDownload int64
	logger      *slog.Logger
}

var (
	_ dialogue.Messenger  = (*Client)(nil)
	_ dialogue.PackSource = (*Client)(nil)
	_ export.FileSource   = (*Client)(nil)
)

// NewClient authorises the bot against the configured Bot API endpoint.
func NewClient(log *slog.Logger, rc *boot.RuntimeConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", "telegram"))
	if err := tgbotapi.SetLogger(&slogBotLogger{log: log}); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}

	httpClient := &http.Client{Timeout: rc.RequestTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(rc.BotToken, rc.APIURL+"/bot%s/%s", httpClient)
	if err != nil {
		log.Error("create bot failed", slog.String("api_url", rc.APIURL), slog.Any("error", err))
		return nil, fmt.Errorf("create bot: %w", err)
	}
	log.Info("authorized", slog.String("username", bot.Self.UserName), slog.String("api_url", rc.APIURL))

	return &Client{
		bot:         bot,
		http:        httpClient,
		apiURL:      rc.APIURL,
		pollTimeout: rc.PollTimeout,
		maxDownload: rc.MaxAssetBytes,
		logger:      log,
	}, nil
}

// SendText sends a text message and returns its id. Markdown is rendered as Telegram HTML.
func (c *Client) SendText(ctx context.Context, msg dialogue.OutgoingText) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	text := msg.Text
	parseMode := ""
	if msg.Markdown {
		text, parseMode = markdownToTelegramHTML(text), tgbotapi.ModeHTML
	}
	message := tgbotapi.NewMessage(msg.ChatID, text)
	message.ParseMode = parseMode
	message.DisableWebPagePreview = true
	if msg.ReplyTo > 0 {
		message.ReplyToMessageID = msg.ReplyTo
	}
	sent, err := c.bot.Send(message)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a message sent earlier by the bot.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendDocument uploads doc as a file attachment.
func (c *Client) SendDocument(ctx context.Context, doc dialogue.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	document := tgbotapi.NewDocument(doc.ChatID, tgbotapi.FileBytes{Name: doc.Filename, Bytes: doc.Data})
	if doc.ReplyTo > 0 {
		document.ReplyToMessageID = doc.ReplyTo
	}
	if _, err := c.bot.Send(document); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// FileInfo resolves a file id to its storage path with getFile.
func (c *Client) FileInfo(ctx context.Context, fileID string) (export.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return export.RemoteFile{}, err
	}
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return export.RemoteFile{}, fmt.Errorf("get file: %w", err)
	}
	return export.RemoteFile{Path: file.FilePath, Size: int64(file.FileSize)}, nil
}

// Download fetches a file by the path returned from FileInfo.
// Bodies larger than the configured asset limit are rejected without being buffered whole.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, FileURL(c.apiURL, c.bot.Token, path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if c.maxDownload <= 0 {
		return io.ReadAll(resp.Body)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxDownload {
		return nil, fmt.Errorf("download exceeds %d bytes", c.maxDownload)
	}
	return data, nil
}

// Pack lists a sticker set with getStickerSet.
func (c *Client) Pack(ctx context.Context, name string) (sticker.Pack, error) {
	if err := ctx.Err(); err != nil {
		return sticker.Pack{}, err
	}
	set, err := c.bot.GetStickerSet(tgbotapi.GetStickerSetConfig{Name: name})
	if err != nil {
		return sticker.Pack{}, fmt.Errorf("get sticker set: %w", err)
	}
	return packFromSet(set), nil
}

// FileURL builds the download URL of a file path on the Bot API server.
func FileURL(apiURL, token, path string) string {
	return strings.TrimRight(apiURL, "/") + "/file/bot" + token + "/" + strings.TrimLeft(path, "/")
}

func packFromSet(set tgbotapi.StickerSet) sticker.Pack {
	pk := sticker.Pack{
		Name:   set.Name,
		Title:  set.Title,
		Assets: make([]sticker.AssetRef, 0, len(set.Stickers)),
	}
	for _, s := range set.Stickers {
		pk.Assets = append(pk.Assets, sticker.AssetRef{
			FileID:   s.FileID,
			UniqueID: s.FileUniqueID,
			SetName:  set.Name,
		})
	}
	return pk
}
