package attendance

import "time"

// Status is the review state of an attendance record.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Student is a member of the roster.
type Student struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	ClassName string `json:"className,omitempty"`
	FaceImage string `json:"faceImage,omitempty"` // data URL or hosted image URL
}

// Record is one attendance check-in.
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Date        string    `json:"date"` // 2006-01-02
	Time        string    `json:"time"` // 15:04:05
	FaceMatch   int       `json:"faceMatch"`
	VoiceMatch  int       `json:"voiceMatch"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CheckIn carries what a completed check-in session knows about the student.
type CheckIn struct {
	StudentID   string
	StudentName string
	SnapshotURL string
}

// Scores are the match percentages attached to a record at creation.
type Scores struct {
	Face  int
	Voice int
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)
