// Package state stores the dialogue state of each conversation.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// State is the dialogue state of one conversation.
type State string

const (
	Start               State = "start"
	AwaitingSingleAsset State = "single_export"
	AwaitingPackAsset   State = "pack_export"
)

// ErrUnknownState is returned when a stored value is not a valid State.
var ErrUnknownState = errors.New("unknown dialogue state")

// Parse validates a stored state value. An empty value is Start.
func Parse(raw string) (State, error) {
	switch s := State(strings.TrimSpace(raw)); s {
	case "":
		return Start, nil
	case Start, AwaitingSingleAsset, AwaitingPackAsset:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownState, raw)
	}
}

func (s State) String() string {
	return string(s)
}

// Store keeps one State per chat. A chat without a stored state is in Start.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, s State) error
	Reset(ctx context.Context, chatID int64) error
}
