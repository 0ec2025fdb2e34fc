package attendance

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Dialect selects placeholder style and schema for SQLStore.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// SQLStore persists attendance data in Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database handle. Call Migrate before use.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Migrate creates the tables if they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	seq := "seq BIGSERIAL PRIMARY KEY"
	if s.dialect == SQLite {
		seq = "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	schema := []string{
		`CREATE TABLE IF NOT EXISTS students (
			` + seq + `,
			id          TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			class_name  TEXT NOT NULL DEFAULT '',
			face_image  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			` + seq + `,
			id           TEXT NOT NULL UNIQUE,
			student_id   TEXT NOT NULL,
			student_name TEXT NOT NULL,
			date         TEXT NOT NULL,
			time         TEXT NOT NULL,
			face_match   INTEGER NOT NULL,
			voice_match  INTEGER NOT NULL,
			status       TEXT NOT NULL DEFAULT 'Pending',
			created_at   TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_records_date ON attendance_records(date)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_records_student ON attendance_records(student_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) CreateStudent(ctx context.Context, st Student) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO students (id, name, class_name, face_image)
		VALUES (?, ?, ?, ?)
	`), st.ID, st.Name, st.ClassName, st.FaceImage)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return backendErr("create student", err)
}

func (s *SQLStore) UpdateStudent(ctx context.Context, st Student) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE students SET name = ?, class_name = ?, face_image = ? WHERE id = ?
	`), st.Name, st.ClassName, st.FaceImage, st.ID)
	if err != nil {
		return backendErr("update student", err)
	}
	return affectedOrNotFound(res)
}

func (s *SQLStore) DeleteStudent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM students WHERE id = ?`), id)
	return backendErr("delete student", err)
}

func (s *SQLStore) GetStudent(ctx context.Context, id string) (Student, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, class_name, face_image FROM students WHERE id = ?
	`), id)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.ClassName, &st.FaceImage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, backendErr("get student", err)
	}
	return st, nil
}

func (s *SQLStore) ListStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	query := `SELECT id, name, class_name, face_image FROM students`
	var args []any
	if f.Search != "" {
		query += ` WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(id) LIKE ? ESCAPE '\'`
		p := likePattern(f.Search)
		args = append(args, p, p)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, backendErr("list students", err)
	}
	defer rows.Close()
	out := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.ClassName, &st.FaceImage); err != nil {
			return nil, backendErr("list students", err)
		}
		out = append(out, st)
	}
	return out, backendErr("list students", rows.Err())
}

func (s *SQLStore) CreateRecord(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO attendance_records (id, student_id, student_name, date, time, face_match, voice_match, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), r.ID, r.StudentID, r.StudentName, r.Date, r.Time, r.FaceMatch, r.VoiceMatch, string(r.Status), r.CreatedAt)
	if err != nil {
		return Record{}, backendErr("create record", err)
	}
	return r, nil
}

const recordColumns = `id, student_id, student_name, date, time, face_match, voice_match, status, created_at`

func (s *SQLStore) GetRecord(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`), id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, backendErr("get record", err)
	}
	return r, nil
}

func (s *SQLStore) ListRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	var args []any
	var clauses []string
	if f.Date != "" {
		clauses = append(clauses, "date = ?")
		args = append(args, f.Date)
	}
	if f.StudentID != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.Search != "" {
		clauses = append(clauses, `(LOWER(student_name) LIKE ? ESCAPE '\' OR LOWER(student_id) LIKE ? ESCAPE '\')`)
		p := likePattern(f.Search)
		args = append(args, p, p)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY seq DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, backendErr("list records", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, backendErr("list records", err)
		}
		out = append(out, r)
	}
	return out, backendErr("list records", rows.Err())
}

func (s *SQLStore) UpdateRecordStatus(ctx context.Context, id string, status Status) (Record, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE attendance_records SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return Record{}, backendErr("update record status", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return Record{}, err
	}
	return s.GetRecord(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var status string
	err := row.Scan(&r.ID, &r.StudentID, &r.StudentName, &r.Date, &r.Time, &r.FaceMatch, &r.VoiceMatch, &status, &r.CreatedAt)
	r.Status = Status(status)
	return r, err
}

// rebind rewrites ? placeholders to $N for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func likePattern(q string) string {
	q = strings.ToLower(q)
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return backendErr("rows affected", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(ErrBackend, "%s: %v", op, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
