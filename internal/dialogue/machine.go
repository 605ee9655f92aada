// Package dialogue routes incoming chat events through the per-chat export dialogue.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/memohai/sticker-export-bot/internal/logger"
	"github.com/memohai/sticker-export-bot/internal/metrics"
	"github.com/memohai/sticker-export-bot/internal/pack"
	"github.com/memohai/sticker-export-bot/internal/state"
	"github.com/memohai/sticker-export-bot/internal/sticker"
)

// Commands understood by the machine, without the leading slash.
const (
	CommandStart  = "start"
	CommandHelp   = "help"
	CommandSingle = "single"
	CommandPack   = "pack"
	CommandCancel = "cancel"
)

const (
	msgSingleMode  = "Single export mode, please send me stickers."
	msgPackMode    = "Pack export mode, please send me a sticker from the pack you want to export."
	msgProcessing  = "Processing..."
	msgSendSticker = "Please send me a sticker."
	msgCanceled    = "Operation canceled."
	msgUsage       = "Use /single to export a sticker or /pack to export an entire sticker pack."
)

// Greeting is the markdown introduction sent for /start and /help.
const Greeting = `I am a sticker export bot that can help you export a sticker or an entire sticker pack.
You can use the following commands to enter different modes:

- /single export a single sticker
- /pack export an entire sticker pack as a ZIP archive

You can also use the /cancel command to cancel the current operation.

This bot is open source. You can find the source code on [AH-dark/telegram-sticker-export-bot](https://github.com/AH-dark/telegram-sticker-export-bot). If you have any questions or suggestions, please feel free to open an issue or pull request.`

var (
	errNotSticker = fmt.Errorf("%w: only stickers can be exported, please send me a sticker", sticker.ErrInvalidRequest)
	errNoPack     = fmt.Errorf("%w: this sticker does not belong to a sticker pack", sticker.ErrInvalidRequest)
)

// Event is one inbound chat message reduced to what the dialogue needs.
type Event struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Private   bool
	// Command is the bot command without slash or bot mention, lower-cased. Empty for plain messages.
	Command string
	Text    string
	Sticker *sticker.AssetRef
	// HasMedia is set for photos, documents and other attachments that are not stickers.
	HasMedia bool
}

// OutgoingText is a text reply. Markdown texts are rendered by the messenger.
type OutgoingText struct {
	ChatID   int64
	ReplyTo  int
	Text     string
	Markdown bool
}

// Document is a file reply.
type Document struct {
	ChatID   int64
	ReplyTo  int
	Filename string
	Data     []byte
}

// Messenger delivers replies to the chat.
type Messenger interface {
	SendText(ctx context.Context, msg OutgoingText) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendDocument(ctx context.Context, doc Document) error
}

// PackSource lists the stickers of a named pack.
type PackSource interface {
	Pack(ctx context.Context, name string) (sticker.Pack, error)
}

// Admitter decides whether a user may be served right now.
type Admitter interface {
	Admit(userID int64) bool
}

// SingleExporter exports one sticker.
type SingleExporter interface {
	Export(ctx context.Context, ref sticker.AssetRef) (sticker.ExportedAsset, error)
}

// PackExporter exports a whole pack into one archive.
type PackExporter interface {
	ExportPack(ctx context.Context, pk sticker.Pack, sink pack.ProgressSink) (pack.Archive, error)
}

// Machine is the dialogue state machine. One Machine serves all chats; state lives in the Store.
type Machine struct {
	logger    *slog.Logger
	store     state.Store
	admitter  Admitter
	messenger Messenger
	packs     PackSource
	single    SingleExporter
	packer    PackExporter
}

// NewMachine wires the dialogue to its collaborators.
func NewMachine(log *slog.Logger, store state.Store, admitter Admitter, messenger Messenger, packs PackSource, single SingleExporter, packer PackExporter) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		logger:    log.With(slog.String("service", "dialogue")),
		store:     store,
		admitter:  admitter,
		messenger: messenger,
		packs:     packs,
		single:    single,
		packer:    packer,
	}
}

// Handle processes one event. Failures are reported to the chat before being returned,
// so the caller only needs to log them.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	if !ev.Private {
		return nil
	}
	ctx = logger.WithContext(ctx, m.logger)
	ctx = logger.WithChat(ctx, ev.ChatID, ev.UserID)

	admitted := m.admitter.Admit(ev.UserID)
	metrics.ObserveAdmission(admitted)
	if !admitted {
		m.fail(ctx, ev, sticker.ErrAdmissionDenied)
		return sticker.ErrAdmissionDenied
	}

	current, err := m.store.Get(ctx, ev.ChatID)
	if err != nil {
		err = fmt.Errorf("%w: %w", sticker.ErrStateStore, err)
		m.fail(ctx, ev, err)
		return err
	}

	if ev.Command == CommandCancel {
		return m.cancel(ctx, ev)
	}

	switch current {
	case state.Start:
		return m.handleStart(ctx, ev)
	case state.AwaitingSingleAsset, state.AwaitingPackAsset:
		return m.handleAwaiting(ctx, ev, current)
	default:
		err := fmt.Errorf("%w: %w: %q", sticker.ErrStateStore, state.ErrUnknownState, current)
		m.fail(ctx, ev, err)
		return err
	}
}

func (m *Machine) cancel(ctx context.Context, ev Event) error {
	if err := m.store.Reset(ctx, ev.ChatID); err != nil {
		err = fmt.Errorf("%w: %w", sticker.ErrStateStore, err)
		m.fail(ctx, ev, err)
		return err
	}
	return m.reply(ctx, ev, msgCanceled)
}

func (m *Machine) handleStart(ctx context.Context, ev Event) error {
	switch ev.Command {
	case CommandStart, CommandHelp:
		_, err := m.messenger.SendText(ctx, OutgoingText{ChatID: ev.ChatID, Text: Greeting, Markdown: true})
		return err
	case CommandSingle:
		return m.enter(ctx, ev, state.AwaitingSingleAsset, msgSingleMode)
	case CommandPack:
		return m.enter(ctx, ev, state.AwaitingPackAsset, msgPackMode)
	default:
		return m.reply(ctx, ev, msgUsage)
	}
}

func (m *Machine) enter(ctx context.Context, ev Event, next state.State, prompt string) error {
	if err := m.store.Set(ctx, ev.ChatID, next); err != nil {
		err = fmt.Errorf("%w: %w", sticker.ErrStateStore, err)
		m.fail(ctx, ev, err)
		return err
	}
	logger.FromContext(ctx).Debug("dialogue state changed", slog.String("state", next.String()))
	return m.reply(ctx, ev, prompt)
}

func (m *Machine) handleAwaiting(ctx context.Context, ev Event, current state.State) error {
	if ev.Sticker == nil {
		if ev.HasMedia {
			m.fail(ctx, ev, errNotSticker)
			return errNotSticker
		}
		return m.reply(ctx, ev, msgSendSticker)
	}
	if current == state.AwaitingPackAsset && !ev.Sticker.InPack() {
		m.fail(ctx, ev, errNoPack)
		return errNoPack
	}

	placeholder, err := m.messenger.SendText(ctx, OutgoingText{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: msgProcessing})
	if err != nil {
		err = fmt.Errorf("send placeholder: %w", err)
		if resetErr := m.store.Reset(ctx, ev.ChatID); resetErr != nil {
			logger.FromContext(ctx).Error("reset state failed", slog.Any("error", resetErr))
		}
		m.fail(ctx, ev, err)
		return err
	}
	defer m.deletePlaceholder(ctx, ev.ChatID, placeholder)

	ref := *ev.Sticker
	if current == state.AwaitingSingleAsset {
		err = m.exportSingle(ctx, ev, ref)
	} else {
		err = m.exportPack(ctx, ev, ref.SetName, placeholder)
	}

	resetErr := m.store.Reset(ctx, ev.ChatID)
	if err != nil {
		if resetErr != nil {
			logger.FromContext(ctx).Error("reset state failed", slog.Any("error", resetErr))
		}
		m.fail(ctx, ev, err)
		return err
	}
	if resetErr != nil {
		resetErr = fmt.Errorf("%w: %w", sticker.ErrStateStore, resetErr)
		m.fail(ctx, ev, resetErr)
		return resetErr
	}
	return nil
}

func (m *Machine) exportSingle(ctx context.Context, ev Event, ref sticker.AssetRef) error {
	asset, err := m.single.Export(ctx, ref)
	if err != nil {
		return err
	}
	return m.sendDocument(ctx, ev, asset.Filename, asset.Data)
}

func (m *Machine) exportPack(ctx context.Context, ev Event, name string, placeholder int) error {
	pk, err := m.packs.Pack(ctx, name)
	if err != nil {
		if !errors.Is(err, sticker.ErrMetadataFetch) {
			err = fmt.Errorf("%w: sticker set %s: %w", sticker.ErrMetadataFetch, name, err)
		}
		return err
	}
	// Only export progress reaches the chat; archiving is logged.
	sink := func(ctx context.Context, p pack.Progress) error {
		if p.Stage != pack.StageExport {
			logger.FromContext(ctx).Debug("archive progress", slog.Int("done", p.Done), slog.Int("total", p.Total))
			return nil
		}
		return m.messenger.EditText(ctx, ev.ChatID, placeholder, ProgressText(p))
	}
	archive, err := m.packer.ExportPack(ctx, pk, sink)
	if err != nil {
		return err
	}
	return m.sendDocument(ctx, ev, archive.Filename, archive.Data)
}

func (m *Machine) sendDocument(ctx context.Context, ev Event, filename string, data []byte) error {
	err := m.messenger.SendDocument(ctx, Document{
		ChatID:   ev.ChatID,
		ReplyTo:  ev.MessageID,
		Filename: filename,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("send document %s: %w", filename, err)
	}
	return nil
}

func (m *Machine) deletePlaceholder(ctx context.Context, chatID int64, messageID int) {
	// The placeholder goes even when the request context is already done.
	ctx = context.WithoutCancel(ctx)
	if err := m.messenger.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.FromContext(ctx).Warn("delete placeholder failed", slog.Int("message_id", messageID), slog.Any("error", err))
	}
}

func (m *Machine) reply(ctx context.Context, ev Event, text string) error {
	_, err := m.messenger.SendText(ctx, OutgoingText{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: text})
	return err
}

// fail sends the single explanation for err.
func (m *Machine) fail(ctx context.Context, ev Event, err error) {
	log := logger.FromContext(ctx)
	log.Warn("request failed", slog.Any("error", err))
	if replyErr := m.reply(context.WithoutCancel(ctx), ev, sticker.UserMessage(err)); replyErr != nil {
		log.Error("send failure reply failed", slog.Any("error", replyErr))
	}
}

// ProgressText renders an export progress notification for the placeholder message.
func ProgressText(p pack.Progress) string {
	return fmt.Sprintf("Exporting stickers... %d/%d", p.Done, p.Total)
}
