package telegram

import (
	"context"
	"log/slog"
	"sync"

	"github.com/memohai/sticker-export-bot/internal/dialogue"
)

// chatDispatcher runs the events of one chat in arrival order on a single worker,
// while different chats proceed concurrently. A worker exits once its queue drains.
type chatDispatcher struct {
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	queues map[int64][]dialogue.Event
}

func newChatDispatcher(log *slog.Logger, handler Handler) *chatDispatcher {
	return &chatDispatcher{
		handler: handler,
		logger:  log,
		queues:  map[int64][]dialogue.Event{},
	}
}

// dispatch queues ev behind earlier events of the same chat.
func (d *chatDispatcher) dispatch(ctx context.Context, ev dialogue.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pending, running := d.queues[ev.ChatID]
	d.queues[ev.ChatID] = append(pending, ev)
	if running {
		return
	}
	d.wg.Add(1)
	go d.work(ctx, ev.ChatID)
}

func (d *chatDispatcher) work(ctx context.Context, chatID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		pending := d.queues[chatID]
		if len(pending) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		ev := pending[0]
		pending[0] = dialogue.Event{}
		d.queues[chatID] = pending[1:]
		d.mu.Unlock()

		if err := d.handler(ctx, ev); err != nil {
			d.logger.Warn("handle update failed", slog.Int64("chat_id", ev.ChatID), slog.Any("error", err))
		}
	}
}

// active returns the number of chats with a running worker.
func (d *chatDispatcher) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// wait blocks until every worker has drained.
func (d *chatDispatcher) wait() {
	d.wg.Wait()
}
