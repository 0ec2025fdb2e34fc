package attendance

import (
	"context"
	"strings"
)

// StudentFilter narrows ListStudents. The zero value matches everything.
type StudentFilter struct {
	Search string
}

// RecordFilter narrows ListRecords. The zero value matches everything.
type RecordFilter struct {
	Date      string
	Search    string
	StudentID string
}

// Store persists students and attendance records.
//
// Implementations must not assume callers rely on a particular ordering
// beyond: students in insertion order, records newest first.
type Store interface {
	CreateStudent(ctx context.Context, s Student) error
	UpdateStudent(ctx context.Context, s Student) error
	DeleteStudent(ctx context.Context, id string) error
	GetStudent(ctx context.Context, id string) (Student, error)
	ListStudents(ctx context.Context, f StudentFilter) ([]Student, error)

	CreateRecord(ctx context.Context, r Record) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]Record, error)
	UpdateRecordStatus(ctx context.Context, id string, status Status) (Record, error)

	Close() error
}

func (f StudentFilter) match(s Student) bool {
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.ID), q)
}

func (f RecordFilter) match(r Record) bool {
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(r.StudentName), q) || strings.Contains(strings.ToLower(r.StudentID), q)
}
