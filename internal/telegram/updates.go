package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/sticker-export-bot/internal/dialogue"
	"github.com/memohai/sticker-export-bot/internal/sticker"
)

// Handler processes one dialogue event.
type Handler func(ctx context.Context, ev dialogue.Event) error

// Listen starts long polling and dispatches messages to handler.
// Messages of one chat are handled one at a time in arrival order; different chats run concurrently.
// The returned stop function ends polling and waits for in-flight handlers.
func (c *Client) Listen(ctx context.Context, handler Handler) func(context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = c.pollTimeout
	updateConfig.AllowedUpdates = []string{"message"}
	updates := c.bot.GetUpdatesChan(updateConfig)
	listenCtx, cancel := context.WithCancel(ctx)

	dispatcher := newChatDispatcher(c.logger, handler)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-listenCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					c.logger.Info("updates channel closed")
					return
				}
				ev, ok := toEvent(update.Message)
				if !ok {
					continue
				}
				c.logger.Debug("inbound received",
					slog.Int64("chat_id", ev.ChatID),
					slog.Int64("user_id", ev.UserID),
					slog.String("command", ev.Command),
					slog.Bool("sticker", ev.Sticker != nil),
				)
				dispatcher.dispatch(listenCtx, ev)
			}
		}
	}()

	return func(stopCtx context.Context) error {
		c.logger.Info("stop receiving updates")
		c.bot.StopReceivingUpdates()
		cancel()
		<-done
		waited := make(chan struct{})
		go func() {
			dispatcher.wait()
			close(waited)
		}()
		select {
		case <-waited:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

// toEvent maps a Telegram message to a dialogue event. Messages without a chat are dropped.
func toEvent(msg *tgbotapi.Message) (dialogue.Event, bool) {
	if msg == nil || msg.Chat == nil {
		return dialogue.Event{}, false
	}
	ev := dialogue.Event{
		ChatID:    msg.Chat.ID,
		UserID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Private:   msg.Chat.IsPrivate(),
		Text:      strings.TrimSpace(msg.Text),
	}
	if msg.From != nil {
		ev.UserID = msg.From.ID
	}
	if msg.IsCommand() {
		ev.Command = strings.ToLower(msg.Command())
	}
	if msg.Sticker != nil {
		ev.Sticker = &sticker.AssetRef{
			FileID:   msg.Sticker.FileID,
			UniqueID: msg.Sticker.FileUniqueID,
			SetName:  msg.Sticker.SetName,
		}
	}
	ev.HasMedia = len(msg.Photo) > 0 ||
		msg.Document != nil ||
		msg.Video != nil ||
		msg.Animation != nil ||
		msg.Audio != nil ||
		msg.Voice != nil ||
		msg.VideoNote != nil
	return ev, true
}
