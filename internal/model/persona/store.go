package persona

// Store exposes persona retrieval for the prompt builder and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store over a fixed list, keeping declaration order for List.
type MemoryStore struct {
	items []Persona
	byID  map[string]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas. Later entries
// with a duplicate id are ignored.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int, len(items))}
	for _, item := range items {
		if _, dup := s.byID[item.ID]; dup {
			continue
		}
		s.byID[item.ID] = len(s.items)
		s.items = append(s.items, item)
	}
	return s
}

// List returns every persona.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[idx], true
}

// Resolve returns the persona with the given id, falling back to DefaultID and then to
// the first entry.
func Resolve(store Store, id string) (Persona, bool) {
	if p, ok := store.FindByID(id); ok {
		return p, true
	}
	if p, ok := store.FindByID(DefaultID); ok {
		return p, true
	}
	if items := store.List(); len(items) > 0 {
		return items[0], true
	}
	return Persona{}, false
}
