package glossary

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Compile-time assertion that MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. It backs unit tests for
// every higher layer (prompt composer, orchestrator, reconciliation).
// [MemStore.LoadAll] replaces its contents wholesale; nothing in this
// module keeps a MemStore in sync with a PostgreSQL-backed store.
type MemStore struct {
	mu       sync.RWMutex
	entities map[EntityKey]Entity
}

// NewMemStore returns an initialised, empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{entities: make(map[EntityKey]Entity)}
}

// LoadAll replaces the store's contents wholesale — used to rebuild the
// cache from a backing store snapshot.
func (s *MemStore) LoadAll(entities []Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[EntityKey]Entity, len(entities))
	for _, e := range entities {
		e.Untranslated = norm.NFC.String(e.Untranslated)
		s.entities[e.Key()] = e
	}
}

func (s *MemStore) Add(ctx context.Context, e Entity) error {
	e.Untranslated = norm.NFC.String(e.Untranslated)

	s.mu.Lock()
	defer s.mu.Unlock()

	if conflict, ok := s.findCrossCategory(e.BookID, e.Untranslated, e.Category); ok {
		return &ErrConflictCategory{Existing: conflict}
	}
	s.entities[e.Key()] = e
	return nil
}

// findCrossCategory reports whether untranslated already exists under a
// category other than category within bookID's scope (I2).
func (s *MemStore) findCrossCategory(bookID, untranslated string, category Category) (Category, bool) {
	for k := range s.entities {
		if k.BookID == bookID && k.Untranslated == untranslated && k.Category != category {
			return k.Category, true
		}
	}
	return "", false
}

func (s *MemStore) Get(ctx context.Context, key EntityKey) (Entity, error) {
	key.Untranslated = norm.NFC.String(key.Untranslated)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	if !ok {
		return Entity{}, ErrNotFound
	}
	return e, nil
}

func (s *MemStore) Update(ctx context.Context, key EntityKey, fields UpdateFields) error {
	key.Untranslated = norm.NFC.String(key.Untranslated)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[key]
	if !ok {
		return ErrNotFound
	}

	onlyBookIDChanged := fields.BookID != nil && fields.Translation == nil &&
		fields.LastChapter == nil && fields.IncorrectTranslation == nil && fields.Gender == nil

	if fields.Translation != nil {
		e.Translation = *fields.Translation
	}
	if fields.LastChapter != nil {
		e.LastChapter = *fields.LastChapter
	}
	if fields.IncorrectTranslation != nil {
		e.IncorrectTranslation = *fields.IncorrectTranslation
	}
	if fields.Gender != nil {
		e.Gender = *fields.Gender
	}

	if onlyBookIDChanged {
		delete(s.entities, key)
		e.BookID = *fields.BookID
		s.entities[e.Key()] = e
		return nil
	}

	s.entities[key] = e
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key EntityKey) (bool, error) {
	key.Untranslated = norm.NFC.String(key.Untranslated)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[key]; !ok {
		return false, nil
	}
	delete(s.entities, key)
	return true, nil
}

func (s *MemStore) MoveCategory(ctx context.Context, bookID, untranslated string, old, new Category) error {
	untranslated = norm.NFC.String(untranslated)
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey := EntityKey{Category: old, Untranslated: untranslated, BookID: bookID}
	e, ok := s.entities[oldKey]
	if !ok {
		return ErrNotFound
	}
	newKey := EntityKey{Category: new, Untranslated: untranslated, BookID: bookID}
	if _, exists := s.entities[newKey]; exists {
		return ErrAlreadyInTarget
	}
	delete(s.entities, oldKey)
	e.Category = new
	s.entities[newKey] = e
	return nil
}

func (s *MemStore) GetByTranslation(ctx context.Context, bookID, translation string) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, e := range s.entities {
		if e.Translation != translation {
			continue
		}
		if k.BookID == bookID || k.BookID == "" {
			return e, nil
		}
	}
	return Entity{}, ErrNotFound
}

func (s *MemStore) SimilarTranslations(ctx context.Context, bookID, prefix string, limit int) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	first := []rune(prefix)[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for k, e := range s.entities {
		if k.BookID != bookID && k.BookID != "" {
			continue
		}
		if e.Translation == "" || seen[e.Translation] {
			continue
		}
		if []rune(e.Translation)[0] != first {
			continue
		}
		seen[e.Translation] = true
		out = append(out, e.Translation)
		if len(out) >= limit {
			break
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemStore) ForBook(ctx context.Context, bookID string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// book-scoped wins over global for the same (category, untranslated)
	merged := make(map[[2]string]Entity)
	for k, e := range s.entities {
		if k.BookID != "" && k.BookID != bookID {
			continue
		}
		composite := [2]string{string(k.Category), k.Untranslated}
		if existing, ok := merged[composite]; ok && existing.BookID == bookID && k.BookID == "" {
			continue // global never overrides a book-scoped entry already recorded
		}
		merged[composite] = e
	}
	out := make([]Entity, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	return out, nil
}

func (s *MemStore) DuplicateCategoryAudit(ctx context.Context) ([]PotentialDuplicate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scopeKey struct {
		bookID, untranslated string
	}
	byScope := make(map[scopeKey][]Entity)
	for k, e := range s.entities {
		sk := scopeKey{bookID: k.BookID, untranslated: k.Untranslated}
		byScope[sk] = append(byScope[sk], e)
	}

	var dups []PotentialDuplicate
	for _, entities := range byScope {
		if len(entities) < 2 {
			continue
		}
		for i := 1; i < len(entities); i++ {
			dups = append(dups, PotentialDuplicate{
				Untranslated:        entities[i].Untranslated,
				Translation:         entities[i].Translation,
				NewCategory:         entities[i].Category,
				ExistingCategory:    entities[0].Category,
				ExistingTranslation: entities[0].Translation,
			})
		}
	}
	return dups, nil
}

func (s *MemStore) DuplicateTranslationAudit(ctx context.Context) ([]TranslationGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type groupKey struct {
		bookID, translation string
	}
	byTranslation := make(map[groupKey][]EntityKey)
	for k, e := range s.entities {
		if e.Translation == "" {
			continue
		}
		gk := groupKey{bookID: k.BookID, translation: e.Translation}
		byTranslation[gk] = append(byTranslation[gk], k)
	}

	var groups []TranslationGroup
	for gk, keys := range byTranslation {
		if len(keys) < 2 {
			continue
		}
		groups = append(groups, TranslationGroup{BookID: gk.bookID, Translation: gk.translation, Entities: keys})
	}
	return groups, nil
}

func (s *MemStore) BulkUpsert(ctx context.Context, entities []Entity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		e.Untranslated = norm.NFC.String(e.Untranslated)
		s.entities[e.Key()] = e
	}
	return len(entities), nil
}

func (s *MemStore) All(ctx context.Context) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Untranslated < out[j].Untranslated
	})
	return out, nil
}
