package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/models"
)

// Store is the single owner of client state. Every mutation goes through
// Update, which clones the current state, runs the updater on the clone and
// swaps it in under one lock. Network I/O never happens while the lock is held.
type Store struct {
	mu    sync.Mutex
	state State

	// notifyMu keeps subscriber callbacks in transition order.
	notifyMu sync.Mutex
	subs     map[int]func(State)
	nextSub  int

	saver     Saver
	debounce  time.Duration
	saveMu    sync.Mutex
	timerMu   sync.Mutex
	saveTimer *time.Timer
	dirty     bool

	log *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSaver persists every transition through s.
func WithSaver(s Saver) Option {
	return func(st *Store) { st.saver = s }
}

// WithSaveDebounce coalesces saves that happen within d of each other.
func WithSaveDebounce(d time.Duration) Option {
	return func(st *Store) { st.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(st *Store) { st.log = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		state: State{Language: DefaultLanguage, Theme: ThemeLight},
		subs:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDefault(s.log)
	return s
}

// Open creates a store rehydrated from loader.
func Open(ctx context.Context, loader Loader, opts ...Option) (*Store, error) {
	s := New(opts...)
	if loader == nil {
		return s, nil
	}
	p, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if p != nil {
		s.state = fromPersisted(*p)
		s.log.Info("State rehydrated", map[string]interface{}{
			"pending":       len(p.SyncQueue),
			"beneficiaries": len(p.Beneficiaries),
		})
	}
	return s, nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to a copy of the state and publishes the result.
// fn must not call back into the store.
func (s *Store) Update(fn func(*State)) {
	s.transition(func(st *State) bool {
		fn(st)
		return true
	})
}

// transition publishes the updated state when fn reports a change.
func (s *Store) transition(fn func(*State) bool) bool {
	s.mu.Lock()
	next := s.state.clone()
	if !fn(&next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.notifyMu.Lock()
	s.mu.Unlock()

	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	for _, fn := range subs {
		fn(next)
	}
	s.notifyMu.Unlock()

	s.scheduleSave()
	return true
}

// Subscribe registers fn to run after every transition. fn runs synchronously
// in transition order and must not mutate the store.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.subs, id)
		s.notifyMu.Unlock()
	}
}

// Enqueue appends a write to the sync queue.
func (s *Store) Enqueue(item models.SyncQueueItem) {
	s.Update(func(st *State) {
		st.SyncQueue = append(st.SyncQueue, item)
	})
}

// SetOnline records the connectivity state. It reports whether it changed.
func (s *Store) SetOnline(online bool) bool {
	return s.transition(func(st *State) bool {
		if st.IsOnline == online {
			return false
		}
		st.IsOnline = online
		return true
	})
}

// BeginSync claims the drain. It succeeds only when online, not already
// syncing and the queue is non-empty, and returns the queue snapshot to process.
func (s *Store) BeginSync() ([]models.SyncQueueItem, bool) {
	var items []models.SyncQueueItem
	ok := s.transition(func(st *State) bool {
		if !st.IsOnline || st.IsSyncing || len(st.SyncQueue) == 0 {
			return false
		}
		st.IsSyncing = true
		items = cloneSlice(st.SyncQueue)
		return true
	})
	return items, ok
}

// EndSync releases the drain. The new queue is the survivors in snapshot
// order followed by any items enqueued while the drain ran.
func (s *Store) EndSync(survivors []models.SyncQueueItem, consumedIDs []string) {
	consumed := make(map[string]struct{}, len(consumedIDs))
	for _, id := range consumedIDs {
		consumed[id] = struct{}{}
	}
	s.Update(func(st *State) {
		queue := make([]models.SyncQueueItem, 0, len(survivors)+len(st.SyncQueue))
		queue = append(queue, survivors...)
		for _, item := range st.SyncQueue {
			if _, ok := consumed[item.ID]; !ok {
				queue = append(queue, item)
			}
		}
		st.SyncQueue = queue
		st.IsSyncing = false
	})
}

// SetLanguage sets the UI language preference.
func (s *Store) SetLanguage(lang string) {
	s.Update(func(st *State) { st.Language = lang })
}

// ToggleTheme flips between light and dark.
func (s *Store) ToggleTheme() {
	s.Update(func(st *State) {
		if st.Theme == ThemeDark {
			st.Theme = ThemeLight
		} else {
			st.Theme = ThemeDark
		}
	})
}

// ResetSession clears the entity collections. Schemes are shared catalogue
// data and stay, as do the queue and preferences.
func (s *Store) ResetSession() {
	s.Update(func(st *State) {
		st.Beneficiaries = nil
		st.Children = nil
		st.HealthLogs = nil
		st.DailyLogs = nil
		st.Alerts = nil
		st.Enrollments = nil
	})
}

func (s *Store) scheduleSave() {
	if s.saver == nil {
		return
	}
	if s.debounce <= 0 {
		s.save(context.Background())
		return
	}
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.dirty = true
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.debounce, func() {
		s.timerMu.Lock()
		s.dirty = false
		s.timerMu.Unlock()
		s.save(context.Background())
	})
}

// save writes the latest state, not the one that triggered the save.
func (s *Store) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	p := toPersisted(s.Snapshot())
	if err := s.saver.Save(ctx, p); err != nil {
		s.log.Error("Failed to persist state", err, map[string]interface{}{
			"pending": len(p.SyncQueue),
		})
		return err
	}
	return nil
}

// Flush writes any debounced save now.
func (s *Store) Flush(ctx context.Context) error {
	if s.saver == nil {
		return nil
	}
	s.timerMu.Lock()
	dirty := s.dirty
	s.dirty = false
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.timerMu.Unlock()
	if !dirty {
		return nil
	}
	return s.save(ctx)
}
