package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int]model.Record
	nextID  int
}

// NewMemoryStore creates a new MemoryStore seeded with the given records.
// Seed records keep their IDs; generated IDs continue after the highest one.
func NewMemoryStore(seed ...model.Record) *MemoryStore {
	s := &MemoryStore{
		records: make(map[int]model.Record, len(seed)),
		nextID:  1,
	}
	for _, r := range seed {
		s.records[r.ID] = r
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return s
}

// List returns all records ordered by ID.
func (s *MemoryStore) List(ctx context.Context) ([]model.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list records: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(func(model.Record) bool { return true }), nil
}

// Get retrieves a record by its ID.
func (s *MemoryStore) Get(ctx context.Context, id int) (*model.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get record: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &record, nil
}

// Categories returns the distinct categories, ordered by the lowest record ID
// carrying each one.
func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list categories: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	categories := []string{}
	for _, r := range s.sorted(func(model.Record) bool { return true }) {
		if !seen[r.Category] {
			seen[r.Category] = true
			categories = append(categories, r.Category)
		}
	}

	return categories, nil
}

// ListByCategory returns the records of one category ordered by ID.
func (s *MemoryStore) ListByCategory(ctx context.Context, category string) ([]model.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list records by category: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(func(r model.Record) bool { return r.Category == category }), nil
}

// Create adds a new record to the store and returns it with a generated ID.
func (s *MemoryStore) Create(ctx context.Context, record *model.Record) (*model.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create record: %w", ctx.Err())
	default:
	}

	if record == nil {
		return nil, fmt.Errorf("create record: %w", ErrNilRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := *record
	created.ID = s.nextID
	s.nextID++
	s.records[created.ID] = created

	return &created, nil
}

// Update applies a partial update to an existing record.
func (s *MemoryStore) Update(ctx context.Context, id int, patch model.RecordPatch) (*model.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update record: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[id]
	if !exists {
		return nil, ErrNotFound
	}

	updated := patch.Apply(existing)
	s.records[id] = updated

	return &updated, nil
}

// Delete removes a record from the store by its ID.
func (s *MemoryStore) Delete(ctx context.Context, id int) (*model.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delete record: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[id]
	if !exists {
		return nil, ErrNotFound
	}

	delete(s.records, id)

	return &existing, nil
}

// sorted returns the records matching keep ordered by ID. Callers hold s.mu.
func (s *MemoryStore) sorted(keep func(model.Record) bool) []model.Record {
	records := make([]model.Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}
