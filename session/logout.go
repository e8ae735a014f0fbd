package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// LogoutReason explains why a session ended.
type LogoutReason string

const (
	ReasonUserLogout     LogoutReason = "user_logout"
	ReasonRefreshFailed  LogoutReason = "refresh_failed"
	ReasonNoRefreshToken LogoutReason = "no_refresh_token"
	ReasonInvalidSession LogoutReason = "invalid_session"
)

// LogoutSignal fans a logout event out to subscribers, typically whatever drives the UI back to
// the login screen. The zero value is ready to use.
type LogoutSignal struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(LogoutReason)
}

// Subscribe registers fn and returns a function that removes it.
func (ls *LogoutSignal) Subscribe(fn func(LogoutReason)) (unsubscribe func()) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.subs == nil {
		ls.subs = make(map[uint64]func(LogoutReason))
	}
	id := ls.nextID
	ls.nextID++
	ls.subs[id] = fn

	return func() {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		delete(ls.subs, id)
	}
}

// Emit calls every subscriber synchronously.
func (ls *LogoutSignal) Emit(reason LogoutReason) {
	ls.mu.RLock()
	subs := make([]func(LogoutReason), 0, len(ls.subs))
	for _, fn := range ls.subs {
		subs = append(subs, fn)
	}
	ls.mu.RUnlock()

	for _, fn := range subs {
		fn(reason)
	}
}

// Teardown clears the store and emits the logout signal. The signal fires even when clearing
// fails so subscribers never keep a signed-in view of a broken session. The clear error is
// returned for logging.
func Teardown(ctx context.Context, store Store, signal *LogoutSignal, reason LogoutReason) error {
	err := store.Clear(ctx)
	if err != nil {
		log.Err(err).Str("reason", string(reason)).Msg("Failed to clear session during teardown")
	}
	if signal != nil {
		signal.Emit(reason)
	}
	return err
}
