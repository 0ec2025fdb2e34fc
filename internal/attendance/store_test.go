package attendance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presensure/internal/store"
)

// backends returns a fresh instance of every Store implementation that can
// run without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	db, err := store.NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	sqlite := NewSQLStore(db.Client, SQLite)
	require.NoError(t, sqlite.Migrate(context.Background()))
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) { fn(t, s) })
	}
}

func TestStoreStudentsKeepInsertionOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateStudent(ctx, Student{ID: "S1001", Name: "Ava Patel", ClassName: "CS101"}))
		require.NoError(t, s.CreateStudent(ctx, Student{ID: "S1002", Name: "Liam Chen", ClassName: "CS101"}))

		got, err := s.ListStudents(ctx, StudentFilter{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "S1001", got[0].ID)
		assert.Equal(t, "S1002", got[1].ID)
	})
}

func TestStoreDuplicateStudentLeavesRosterUnchanged(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateStudent(ctx, Student{ID: "S1001", Name: "Ava Patel"}))

		err := s.CreateStudent(ctx, Student{ID: "S1001", Name: "Someone Else"})
		assert.ErrorIs(t, err, ErrDuplicateKey)

		got, err := s.ListStudents(ctx, StudentFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Ava Patel", got[0].Name)
	})
}

func TestStoreUpdateAndDeleteStudent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateStudent(ctx, Student{ID: "S1003", Name: "Noah Smith", ClassName: "CS102"}))

		require.NoError(t, s.UpdateStudent(ctx, Student{ID: "S1003", Name: "Noah Smith", ClassName: "CS201"}))
		st, err := s.GetStudent(ctx, "S1003")
		require.NoError(t, err)
		assert.Equal(t, "CS201", st.ClassName)

		assert.ErrorIs(t, s.UpdateStudent(ctx, Student{ID: "S9999", Name: "Nobody"}), ErrNotFound)

		require.NoError(t, s.DeleteStudent(ctx, "S1003"))
		require.NoError(t, s.DeleteStudent(ctx, "S1003"), "deleting twice is not an error")
		_, err = s.GetStudent(ctx, "S1003")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreSearchStudentsIgnoresCase(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateStudent(ctx, Student{ID: "S1001", Name: "Ava Patel"}))
		require.NoError(t, s.CreateStudent(ctx, Student{ID: "S1002", Name: "Liam Chen"}))

		got, err := s.ListStudents(ctx, StudentFilter{Search: "LIAM"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "S1002", got[0].ID)

		got, err = s.ListStudents(ctx, StudentFilter{Search: "s100"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.ListStudents(ctx, StudentFilter{Search: "%"})
		require.NoError(t, err)
		assert.Empty(t, got, "wildcards are matched literally")
	})
}

func TestStoreRecordsNewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first, err := s.CreateRecord(ctx, Record{StudentID: "S1002", StudentName: "Liam Chen", Date: "2026-10-15", Time: "09:05:03", FaceMatch: 92, VoiceMatch: 90, Status: StatusPending})
		require.NoError(t, err)
		second, err := s.CreateRecord(ctx, Record{StudentID: "S1001", StudentName: "Ava Patel", Date: "2026-10-15", Time: "09:01:12", FaceMatch: 97, VoiceMatch: 93, Status: StatusApproved})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)

		got, err := s.ListRecords(ctx, RecordFilter{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "S1001", got[0].StudentID)
		assert.Equal(t, "S1002", got[1].StudentID)
		assert.Equal(t, 97, got[0].FaceMatch)
	})
}

func TestStoreRecordFilters(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, r := range []Record{
			{StudentID: "S1001", StudentName: "Ava Patel", Date: "2026-10-14", Time: "09:00:00", Status: StatusApproved},
			{StudentID: "S1002", StudentName: "Liam Chen", Date: "2026-10-15", Time: "09:00:00", Status: StatusPending},
			{StudentID: "S1001", StudentName: "Ava Patel", Date: "2026-10-15", Time: "09:10:00", Status: StatusPending},
		} {
			_, err := s.CreateRecord(ctx, r)
			require.NoError(t, err)
		}

		got, err := s.ListRecords(ctx, RecordFilter{Date: "2026-10-15"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.ListRecords(ctx, RecordFilter{Date: "2026-10-15", Search: "ava"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "09:10:00", got[0].Time)

		got, err = s.ListRecords(ctx, RecordFilter{StudentID: "S1001"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.ListRecords(ctx, RecordFilter{Date: "2001-01-01"})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestStoreUpdateRecordStatus(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec, err := s.CreateRecord(ctx, Record{StudentID: "S1002", StudentName: "Liam Chen", Date: "2026-10-15", Time: "09:05:03", Status: StatusPending})
		require.NoError(t, err)

		updated, err := s.UpdateRecordStatus(ctx, rec.ID, StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, updated.Status)

		updated, err = s.UpdateRecordStatus(ctx, rec.ID, StatusRejected)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, updated.Status)
		assert.Equal(t, rec.StudentID, updated.StudentID)

		_, err = s.UpdateRecordStatus(ctx, "missing", StatusApproved)
		assert.ErrorIs(t, err, ErrNotFound)

		all, err := s.ListRecords(ctx, RecordFilter{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, StatusRejected, all[0].Status)
	})
}

func TestSQLStoreRebindsForPostgres(t *testing.T) {
	pg := NewSQLStore(nil, Postgres)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := NewSQLStore(nil, SQLite)
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\% off\_now%`, likePattern("50% OFF_now"))
}
