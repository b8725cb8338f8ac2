package entity

// HistoricSet holds the canonical keys of every URL ever accepted.
// It only grows.
type HistoricSet struct {
	keys map[string]struct{}
}

// NewHistoricSet builds a set from already canonical keys.
func NewHistoricSet(keys ...string) HistoricSet {
	s := HistoricSet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Contains reports whether key is in the set.
func (s HistoricSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Add inserts key.
func (s *HistoricSet) Add(key string) {
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	s.keys[key] = struct{}{}
}

// Merge inserts every key.
func (s *HistoricSet) Merge(keys []string) {
	for _, k := range keys {
		s.Add(k)
	}
}

// Len returns the number of keys.
func (s HistoricSet) Len() int {
	return len(s.keys)
}

// Keys returns the keys in no particular order.
func (s HistoricSet) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	return out
}
