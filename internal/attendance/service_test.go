package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presensure/internal/queue"
)

type fixedScores struct {
	face, voice int
	err         error
}

func (f fixedScores) Score(context.Context, CheckIn) (Scores, error) {
	return Scores{Face: f.face, Voice: f.voice}, f.err
}

// failingStore reports a backend failure for every record write.
type failingStore struct {
	*MemoryStore
}

func (failingStore) CreateRecord(context.Context, Record) (Record, error) {
	return Record{}, errors.Join(ErrBackend, errors.New("disk full"))
}

func newTestService(t *testing.T, scores ScoreProvider, events queue.Queue) *Service {
	t.Helper()
	svc := NewService(NewMemoryStore(), scores, events, time.UTC)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 9, 1, 12, 0, time.UTC) }
	return svc
}

func TestAddStudentValidatesAndTrims(t *testing.T) {
	svc := newTestService(t, fixedScores{}, nil)
	ctx := context.Background()

	_, err := svc.AddStudent(ctx, Student{ID: "  ", Name: "Ava"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddStudent(ctx, Student{ID: "S1001"})
	assert.ErrorIs(t, err, ErrValidation)

	st, err := svc.AddStudent(ctx, Student{ID: " S1001 ", Name: " Ava Patel ", ClassName: "CS101"})
	require.NoError(t, err)
	assert.Equal(t, "S1001", st.ID)
	assert.Equal(t, "Ava Patel", st.Name)

	_, err = svc.AddStudent(ctx, Student{ID: "S1001", Name: "Again"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = svc.UpdateStudent(ctx, Student{ID: "S4040", Name: "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordCheckInCreatesPendingRecord(t *testing.T) {
	events := queue.NewInMemory(4)
	svc := newTestService(t, fixedScores{face: 95, voice: 91}, events)
	ctx := context.Background()

	rec, err := svc.RecordCheckIn(ctx, CheckIn{StudentID: "S1001", StudentName: "Ava Patel"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "2026-10-15", rec.Date)
	assert.Equal(t, "09:01:12", rec.Time)
	assert.Equal(t, 95, rec.FaceMatch)
	assert.Equal(t, 91, rec.VoiceMatch)
	assert.Equal(t, StatusPending, rec.Status)

	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	msgs, err := events.Consume(cctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, EventRecorded, msg.Type)
	var published Record
	require.NoError(t, json.Unmarshal(msg.Body, &published))
	assert.Equal(t, rec.ID, published.ID)
}

func TestRecordCheckInClampsScores(t *testing.T) {
	svc := newTestService(t, fixedScores{face: 140, voice: -3}, nil)
	rec, err := svc.RecordCheckIn(context.Background(), CheckIn{StudentID: "S1001", StudentName: "Ava Patel"})
	require.NoError(t, err)
	assert.Equal(t, 100, rec.FaceMatch)
	assert.Equal(t, 0, rec.VoiceMatch)
}

func TestRecordCheckInFailures(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(t, fixedScores{}, nil)
	_, err := svc.RecordCheckIn(ctx, CheckIn{StudentName: "No Id"})
	assert.ErrorIs(t, err, ErrValidation)

	svc = newTestService(t, fixedScores{err: errors.New("face service down")}, nil)
	_, err = svc.RecordCheckIn(ctx, CheckIn{StudentID: "S1001"})
	assert.ErrorIs(t, err, ErrBackend)

	svc = NewService(failingStore{NewMemoryStore()}, fixedScores{}, nil, time.UTC)
	_, err = svc.RecordCheckIn(ctx, CheckIn{StudentID: "S1001"})
	assert.ErrorIs(t, err, ErrBackend)
	records, _ := svc.Records(ctx, RecordFilter{})
	assert.Empty(t, records)
}

func TestReviewAllowsOverwriteButNotPending(t *testing.T) {
	svc := newTestService(t, fixedScores{face: 93, voice: 92}, nil)
	ctx := context.Background()
	rec, err := svc.RecordCheckIn(ctx, CheckIn{StudentID: "S1002", StudentName: "Liam Chen"})
	require.NoError(t, err)

	got, err := svc.Review(ctx, rec.ID, StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	got, err = svc.Review(ctx, rec.ID, StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)

	_, err = svc.Review(ctx, rec.ID, StatusPending)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Review(ctx, rec.ID, Status("Maybe"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Review(ctx, "nope", StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedDemoOnlySeedsEmptyStore(t *testing.T) {
	svc := newTestService(t, fixedScores{}, nil)
	ctx := context.Background()
	require.NoError(t, svc.SeedDemo(ctx))
	require.NoError(t, svc.SeedDemo(ctx))

	students, err := svc.Students(ctx, StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, []string{"S1001", "S1002", "S1003"}, []string{students[0].ID, students[1].ID, students[2].ID})

	records, err := svc.Records(ctx, RecordFilter{Date: "2026-10-15"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "S1001", records[0].StudentID)
	assert.Equal(t, StatusApproved, records[0].Status)
	assert.Equal(t, "S1002", records[1].StudentID)
	assert.Equal(t, StatusPending, records[1].Status)
}

func TestAnalytics(t *testing.T) {
	records := []Record{
		{StudentID: "S1001", StudentName: "Ava Patel", Date: "2026-10-15", Status: StatusApproved},
		{StudentID: "S1002", StudentName: "Liam Chen", Date: "2026-10-15", Status: StatusPending},
		{StudentID: "S1001", StudentName: "Ava Patel", Date: "2026-10-14", Status: StatusRejected},
		{StudentID: "S1001", StudentName: "Ava Patel", Date: "2026-10-13", Status: StatusApproved},
	}
	a := summarize(records)

	assert.Equal(t, StatusCounts{Present: 2, Pending: 1, Rejected: 1}, a.Pie)
	assert.Equal(t, []DayCount{
		{Date: "2026-10-13", Count: 1},
		{Date: "2026-10-14", Count: 1},
		{Date: "2026-10-15", Count: 2},
	}, a.Line)
	assert.Equal(t, []StudentPct{
		{ID: "S1001", Name: "Ava Patel", Pct: 67},
		{ID: "S1002", Name: "Liam Chen", Pct: 0},
	}, a.Bar)
}

func TestAnalyticsEmpty(t *testing.T) {
	svc := newTestService(t, fixedScores{}, nil)
	a, err := svc.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCounts{}, a.Pie)
	assert.NotNil(t, a.Line)
	assert.Empty(t, a.Line)
	assert.NotNil(t, a.Bar)
	assert.Empty(t, a.Bar)
}

func TestPassphraseFormat(t *testing.T) {
	re := regexp.MustCompile(`^Say: [A-Z][a-z]+ [1-9][0-9] [A-Z][a-z]+$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, re, Passphrase())
	}
}
