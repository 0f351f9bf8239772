package storage

import (
	"sort"
	"strings"
)

// MemoryStore is an in-memory Store. Tests use it in place of SQLite.
type MemoryStore struct {
	m map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]string{}}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.m[key] = value
}

func (s *MemoryStore) Delete(key string) {
	delete(s.m, key)
}

func (s *MemoryStore) Keys(prefix string) []string {
	keys := []string{}
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
