package widgets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the widget list as a JSON file. The settings app writes
// the same file out of process, so List always re-reads from disk instead of
// caching. Writes go through a temp file and rename for atomic updates.
type FileStore struct {
	mu       sync.Mutex
	path     string
	handlers []func()
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// OnChange registers a handler invoked after every durable mutation.
func (s *FileStore) OnChange(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// List returns the persisted widget list ordered by Order.
func (s *FileStore) List() ([]Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// RemoveHosted deletes the hosted widget with the given system identifier.
// Removing an absent widget is tolerated and leaves the list unchanged.
func (s *FileStore) RemoveHosted(id int) error {
	return s.remove(Descriptor{Kind: KindHosted, HostID: id}.Identity())
}

// RemovePlugin deletes the plugin widget with the given extension name.
func (s *FileStore) RemovePlugin(name string) error {
	return s.remove(Descriptor{Kind: KindPlugin, Plugin: name}.Identity())
}

func (s *FileStore) remove(identity string) error {
	s.mu.Lock()
	list, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	kept := list[:0]
	for _, d := range list {
		if d.Identity() != identity {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(list) {
		s.mu.Unlock()
		return nil
	}

	if err := s.save(renumber(kept)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Reorder moves the widget at position from to position to and persists the
// new order.
func (s *FileStore) Reorder(from, to int) error {
	s.mu.Lock()
	list, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		s.mu.Unlock()
		return fmt.Errorf("reorder out of range: from=%d to=%d len=%d", from, to, len(list))
	}

	moved := list[from]
	list = append(list[:from], list[from+1:]...)
	list = append(list[:to], append([]Descriptor{moved}, list[to:]...)...)

	if err := s.save(renumber(list)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Resize persists a new height for the given widget. An absent widget is
// tolerated.
func (s *FileStore) Resize(d Descriptor, height int) error {
	s.mu.Lock()
	list, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	changed := false
	for i := range list {
		if list[i].Identity() == d.Identity() && list[i].Height != height {
			list[i].Height = height
			changed = true
		}
	}
	if !changed {
		s.mu.Unlock()
		return nil
	}

	if err := s.save(list); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *FileStore) load() ([]Descriptor, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read widget store: %w", err)
	}

	var list []Descriptor
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse widget store: %w", err)
	}
	return list, nil
}

func (s *FileStore) save(list []Descriptor) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create widget store directory: %w", err)
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal widget store: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("write widget store: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		return fmt.Errorf("finalize widget store: %w", err)
	}
	return nil
}

func (s *FileStore) notify() {
	s.mu.Lock()
	handlers := make([]func(), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler()
	}
}

func renumber(list []Descriptor) []Descriptor {
	for i := range list {
		list[i].Order = i
	}
	return list
}
