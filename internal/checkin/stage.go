// Package checkin drives a student's self check-in through face detection,
// liveness, voice and confirmation.
//
// The browser owns the camera and microphone; a Session only asks for them
// through Devices and keeps the stage progression, timers and the single
// record-creation call on the server.
package checkin

import (
	"context"
	"errors"
	"time"

	"presensure/internal/attendance"
)

// Stage is a step of the check-in sequence.
type Stage int

const (
	FaceDetect Stage = iota
	Liveness
	Voice
	Confirm
)

func (s Stage) String() string {
	switch s {
	case FaceDetect:
		return "face_detect"
	case Liveness:
		return "liveness"
	case Voice:
		return "voice"
	case Confirm:
		return "confirm"
	}
	return "unknown"
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	// ErrPermissionDenied is returned when a capture device cannot be acquired.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrOutOfOrder is returned for an action the current stage does not accept.
	ErrOutOfOrder = errors.New("action not allowed in current stage")
	// ErrBusy is returned while a timed verification step is running.
	ErrBusy = errors.New("verification in progress")
	// ErrClosed is returned after the session has been closed.
	ErrClosed = errors.New("session closed")
)

// Identity is the authenticated student a session records attendance for.
type Identity struct {
	StudentID   string
	StudentName string
}

// Handle is an acquired capture device. Release must be safe to call twice.
type Handle interface {
	Release()
}

// Devices grants exclusive access to the student's camera and microphone.
type Devices interface {
	AcquireVideo(ctx context.Context) (Handle, error)
	AcquireAudio(ctx context.Context) (Handle, error)
}

// Notifier shows a fire-and-forget message to the student.
type Notifier interface {
	Notify(title, description string)
}

// Recorder persists the attendance record of a completed session.
type Recorder interface {
	RecordCheckIn(ctx context.Context, in attendance.CheckIn) (attendance.Record, error)
}

// Timings are the fixed dwell and verification delays of each stage.
type Timings struct {
	FaceDwell     time.Duration
	LivenessDelay time.Duration
	VoiceDelay    time.Duration
}

// DefaultTimings matches the browser flow: 1.5s, 1.5s and 2s.
var DefaultTimings = Timings{
	FaceDwell:     1500 * time.Millisecond,
	LivenessDelay: 1500 * time.Millisecond,
	VoiceDelay:    2 * time.Second,
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
