package prefs

import "sync"

// Store owns the persisted preferences and fans out change notifications.
// Publication is last-write-wins: a slow watcher is conflated to the newest
// snapshot rather than blocking the writer.
type Store struct {
	mu       sync.Mutex
	path     string
	cur      Prefs
	watchers map[Key]map[int]chan Prefs
	nextID   int
}

// Open loads the preferences at path, falling back to defaults when the file
// does not exist yet.
func Open(path string) (*Store, error) {
	p, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:     path,
		cur:      p,
		watchers: make(map[Key]map[int]chan Prefs),
	}, nil
}

// Get returns a snapshot of the current preferences.
func (s *Store) Get() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.clone()
}

// Update applies mutate to a copy of the current preferences, persists the
// result durably, then notifies watchers of every key whose value changed.
// The mutation is durable before Update returns.
func (s *Store) Update(mutate func(*Prefs)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur
	next := s.cur.clone()
	mutate(&next)

	if err := save(s.path, next); err != nil {
		return err
	}
	s.cur = next

	for _, key := range changedKeys(old, next) {
		for _, ch := range s.watchers[key] {
			offer(ch, next.clone())
		}
	}
	return nil
}

// Watch observes one setting. The returned channel immediately replays the
// current snapshot and re-emits on every subsequent change of key. The
// cancel function releases the subscription.
func (s *Store) Watch(key Key) (<-chan Prefs, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Prefs, 8)
	id := s.nextID
	s.nextID++

	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]chan Prefs)
	}
	s.watchers[key][id] = ch

	ch <- s.cur.clone()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[key], id)
	}
	return ch, cancel
}

// offer delivers without blocking; when the buffer is full the oldest
// pending snapshot is dropped in favor of the newest.
func offer(ch chan Prefs, p Prefs) {
	select {
	case ch <- p:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}
