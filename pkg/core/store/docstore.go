package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
)

// docStore is a keyed collection guarded by a RWMutex. When path is set the
// whole collection is rewritten to a JSON document after every mutation.
type docStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	path  string
}

func newDocStore[T any](path string) (*docStore[T], error) {
	s := &docStore[T]{items: make(map[string]T), path: path}
	if path == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *docStore[T]) get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *docStore[T]) put(key string, v T) error {
	return s.mutate(func(items map[string]T) bool {
		items[key] = v
		return true
	})
}

func (s *docStore[T]) putMany(kv map[string]T) error {
	return s.mutate(func(items map[string]T) bool {
		for k, v := range kv {
			items[k] = v
		}
		return true
	})
}

func (s *docStore[T]) remove(key string) (bool, error) {
	removed := false
	err := s.mutate(func(items map[string]T) bool {
		if _, ok := items[key]; !ok {
			return false
		}
		delete(items, key)
		removed = true
		return true
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// mutate applies fn and persists the result. File-backed stores work on a
// copy that replaces items only once it is on disk, so a failed write leaves
// the collection unchanged. fn reports whether it changed anything.
func (s *docStore[T]) mutate(fn func(items map[string]T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		fn(s.items)
		return nil
	}
	next := make(map[string]T, len(s.items)+1)
	for k, v := range s.items {
		next[k] = v
	}
	if !fn(next) {
		return nil
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *docStore[T]) filter(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0)
	for _, v := range s.items {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *docStore[T]) persist(items map[string]T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(s.path), err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(s.path), err)
	}
	return os.Rename(tmp, s.path)
}

// load reads the document. A truncated or hand-edited file is run through
// json-repair before giving up.
func (s *docStore[T]) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	items := make(map[string]T)
	if err := json.Unmarshal(data, &items); err != nil {
		repaired, rerr := jsonrepair.RepairJSON(string(data))
		if rerr != nil {
			return fmt.Errorf("parse %s: %w", s.path, err)
		}
		items = make(map[string]T)
		if err2 := json.Unmarshal([]byte(repaired), &items); err2 != nil {
			return fmt.Errorf("parse %s after repair: %w", s.path, err2)
		}
		logging.Component("store").WithField("file", s.path).WithError(err).
			Warn("data file was malformed and has been repaired")
	}
	s.items = items
	return nil
}
