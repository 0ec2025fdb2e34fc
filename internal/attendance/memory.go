package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the roster and records in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	students []Student
	records  []Record // newest first
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) CreateStudent(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.studentIndex(s.ID) >= 0 {
		return ErrDuplicateKey
	}
	m.students = append(m.students, s)
	return nil
}

func (m *MemoryStore) UpdateStudent(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.studentIndex(s.ID)
	if i < 0 {
		return ErrNotFound
	}
	m.students[i] = s
	return nil
}

func (m *MemoryStore) DeleteStudent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.studentIndex(id); i >= 0 {
		m.students = append(m.students[:i:i], m.students[i+1:]...)
	}
	return nil
}

func (m *MemoryStore) GetStudent(_ context.Context, id string) (Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.studentIndex(id)
	if i < 0 {
		return Student{}, ErrNotFound
	}
	return m.students[i], nil
}

func (m *MemoryStore) ListStudents(_ context.Context, f StudentFilter) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Student, 0, len(m.students))
	for _, s := range m.students {
		if f.match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateRecord(_ context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]Record{r}, m.records...)
	return r, nil
}

func (m *MemoryStore) GetRecord(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.recordIndex(id)
	if i < 0 {
		return Record{}, ErrNotFound
	}
	return m.records[i], nil
}

func (m *MemoryStore) ListRecords(_ context.Context, f RecordFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateRecordStatus(_ context.Context, id string, status Status) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.recordIndex(id)
	if i < 0 {
		return Record{}, ErrNotFound
	}
	m.records[i].Status = status
	return m.records[i], nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) studentIndex(id string) int {
	for i := range m.students {
		if m.students[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) recordIndex(id string) int {
	for i := range m.records {
		if m.records[i].ID == id {
			return i
		}
	}
	return -1
}
