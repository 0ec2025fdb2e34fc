package attendance

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"presensure/internal/metrics"
	"presensure/internal/queue"
)

// Event types published on the queue.
const (
	EventRecorded = "attendance.recorded"
	EventReviewed = "attendance.reviewed"
)

// ScoreProvider produces the face and voice match percentages for a check-in.
type ScoreProvider interface {
	Score(ctx context.Context, in CheckIn) (Scores, error)
}

// Service coordinates roster administration, check-in recording and review.
type Service struct {
	store    Store
	scores   ScoreProvider
	events   queue.Queue
	loc      *time.Location
	now      func() time.Time
	validate *validator.Validate
}

// NewService creates a service. events may be nil when nothing listens.
func NewService(store Store, scores ScoreProvider, events queue.Queue, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:    store,
		scores:   scores,
		events:   events,
		loc:      loc,
		now:      time.Now,
		validate: validator.New(),
	}
}

// Store exposes the underlying store for read paths.
func (s *Service) Store() Store { return s.store }

// AddStudent validates and inserts a roster entry.
func (s *Service) AddStudent(ctx context.Context, st Student) (Student, error) {
	st = trimStudent(st)
	if err := s.validate.Struct(st); err != nil {
		return Student{}, errors.Wrap(ErrValidation, err.Error())
	}
	if err := s.store.CreateStudent(ctx, st); err != nil {
		return Student{}, s.observe("create_student", err)
	}
	return st, nil
}

// UpdateStudent replaces a roster entry.
func (s *Service) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	st = trimStudent(st)
	if err := s.validate.Struct(st); err != nil {
		return Student{}, errors.Wrap(ErrValidation, err.Error())
	}
	if err := s.store.UpdateStudent(ctx, st); err != nil {
		return Student{}, s.observe("update_student", err)
	}
	return st, nil
}

// DeleteStudent removes a roster entry; removing a missing id is not an error.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	return s.observe("delete_student", s.store.DeleteStudent(ctx, strings.TrimSpace(id)))
}

// Students lists the roster.
func (s *Service) Students(ctx context.Context, f StudentFilter) ([]Student, error) {
	out, err := s.store.ListStudents(ctx, f)
	return out, s.observe("list_students", err)
}

// Student returns one roster entry.
func (s *Service) Student(ctx context.Context, id string) (Student, error) {
	st, err := s.store.GetStudent(ctx, id)
	return st, s.observe("get_student", err)
}

// Records lists attendance records.
func (s *Service) Records(ctx context.Context, f RecordFilter) ([]Record, error) {
	out, err := s.store.ListRecords(ctx, f)
	return out, s.observe("list_records", err)
}

// RecordCheckIn creates the pending record for a completed check-in session.
func (s *Service) RecordCheckIn(ctx context.Context, in CheckIn) (Record, error) {
	if in.StudentID == "" {
		return Record{}, errors.Wrap(ErrValidation, "student id required")
	}
	sc, err := s.scores.Score(ctx, in)
	if err != nil {
		return Record{}, errors.Wrapf(ErrBackend, "score: %v", err)
	}
	now := s.now().In(s.loc)
	rec, err := s.store.CreateRecord(ctx, Record{
		StudentID:   in.StudentID,
		StudentName: in.StudentName,
		Date:        now.Format(dateLayout),
		Time:        now.Format(timeLayout),
		FaceMatch:   clampPercent(sc.Face),
		VoiceMatch:  clampPercent(sc.Voice),
		Status:      StatusPending,
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		return Record{}, s.observe("create_record", err)
	}
	s.publish(ctx, EventRecorded, rec)
	return rec, nil
}

// Review sets a record to Approved or Rejected. Records can be re-reviewed.
func (s *Service) Review(ctx context.Context, id string, status Status) (Record, error) {
	if status != StatusApproved && status != StatusRejected {
		return Record{}, errors.Wrapf(ErrValidation, "status %q", status)
	}
	rec, err := s.store.UpdateRecordStatus(ctx, id, status)
	if err != nil {
		return Record{}, s.observe("update_record_status", err)
	}
	metrics.Reviews.WithLabelValues(string(status)).Inc()
	s.publish(ctx, EventReviewed, rec)
	return rec, nil
}

func (s *Service) publish(ctx context.Context, typ string, rec Record) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		log.Printf("warning: encode %s event: %v", typ, err)
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: typ, Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

func (s *Service) observe(op string, err error) error {
	if err != nil && errors.Is(err, ErrBackend) {
		metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	return err
}

func trimStudent(st Student) Student {
	st.ID = strings.TrimSpace(st.ID)
	st.Name = strings.TrimSpace(st.Name)
	st.ClassName = strings.TrimSpace(st.ClassName)
	return st
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
