package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"presensure/internal/attendance"
	"presensure/internal/metrics"
)

// Config wires a Session to its collaborators.
type Config struct {
	Devices  Devices
	Notifier Notifier
	Recorder Recorder
	Timings  Timings
	// Sleep defaults to the package Sleep; tests replace it to skip delays.
	Sleep      func(ctx context.Context, d time.Duration) error
	Passphrase string
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	Stage      Stage              `json:"stage"`
	Busy       bool               `json:"busy"`
	Progress   float64            `json:"progress"`
	Passphrase string             `json:"passphrase"`
	Result     *attendance.Record `json:"result,omitempty"`
}

// Session is one student's pass through the check-in stages. Stage actions
// run one at a time; an action issued while another is running fails with
// ErrBusy instead of queueing.
type Session struct {
	who   Identity
	cfg   Config
	ctx   context.Context // done once the session is closed
	close context.CancelFunc

	mu       sync.Mutex
	stage    Stage
	busy     bool
	closed   bool
	video    Handle
	audio    Handle
	snapshot string
	result   *attendance.Record
}

// NewSession starts a session in FaceDetect. The camera is requested by Begin.
func NewSession(who Identity, cfg Config) *Session {
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	ctx, cancel := context.WithCancel(context.Background())
	metrics.StageEntered.WithLabelValues(FaceDetect.String()).Inc()
	return &Session{who: who, cfg: cfg, ctx: ctx, close: cancel, stage: FaceDetect}
}

// Identity returns the student this session belongs to.
func (s *Session) Identity() Identity { return s.who }

// SetSnapshotURL attaches a captured face frame for the score provider.
func (s *Session) SetSnapshotURL(url string) {
	s.mu.Lock()
	s.snapshot = url
	s.mu.Unlock()
}

// Begin enters face detection: it acquires the camera, waits for the face to
// settle and moves to Liveness. If the camera is refused the session stays in
// FaceDetect and Begin may be called again.
func (s *Session) Begin(ctx context.Context) error {
	if err := s.start(FaceDetect); err != nil {
		return err
	}
	ctx, done := s.bind(ctx)
	defer done()

	s.mu.Lock()
	held := s.video != nil
	s.mu.Unlock()

	if !held {
		h, err := s.cfg.Devices.AcquireVideo(ctx)
		if err != nil {
			s.idle()
			if s.isClosed() {
				return ErrClosed
			}
			metrics.DeviceDenied.WithLabelValues("video").Inc()
			s.cfg.Notifier.Notify("Camera permission needed", "Please allow camera access.")
			return denied("camera", err)
		}
		if !s.hold(&s.video, h) {
			return ErrClosed
		}
	}

	if err := s.cfg.Sleep(ctx, s.cfg.Timings.FaceDwell); err != nil {
		s.idle()
		return s.interrupted(err)
	}
	s.advance(Liveness, nil)
	return nil
}

// ConfirmLiveness handles the student's "I did it" and moves to Voice after
// the verification delay.
func (s *Session) ConfirmLiveness(ctx context.Context) error {
	if err := s.start(Liveness); err != nil {
		return err
	}
	ctx, done := s.bind(ctx)
	defer done()

	if err := s.cfg.Sleep(ctx, s.cfg.Timings.LivenessDelay); err != nil {
		s.idle()
		return s.interrupted(err)
	}
	s.advance(Voice, nil)
	return nil
}

// StartRecording runs the voice step and records attendance.
//
// A refused microphone is reported but does not stop the flow. The
// microphone is released before the record is written. If writing the record
// fails the session stays in Voice so the student can try again.
func (s *Session) StartRecording(ctx context.Context) (attendance.Record, error) {
	if err := s.start(Voice); err != nil {
		return attendance.Record{}, err
	}
	ctx, done := s.bind(ctx)
	defer done()
	defer s.releaseAudio()

	audio, err := s.cfg.Devices.AcquireAudio(ctx)
	switch {
	case err != nil && s.isClosed():
		s.idle()
		return attendance.Record{}, ErrClosed
	case err != nil:
		metrics.DeviceDenied.WithLabelValues("audio").Inc()
		s.cfg.Notifier.Notify("Microphone permission needed", "Please allow microphone access.")
	default:
		if !s.hold(&s.audio, audio) {
			return attendance.Record{}, ErrClosed
		}
		err := s.cfg.Sleep(ctx, s.cfg.Timings.VoiceDelay)
		s.releaseAudio()
		if err != nil {
			s.idle()
			return attendance.Record{}, s.interrupted(err)
		}
	}

	s.mu.Lock()
	in := attendance.CheckIn{StudentID: s.who.StudentID, StudentName: s.who.StudentName, SnapshotURL: s.snapshot}
	s.mu.Unlock()

	rec, err := s.cfg.Recorder.RecordCheckIn(ctx, in)
	if err != nil {
		s.idle()
		metrics.CheckinsFailed.Inc()
		if s.isClosed() {
			return attendance.Record{}, ErrClosed
		}
		s.cfg.Notifier.Notify("Check-in failed", "Your attendance was not saved. Please record again.")
		if !errors.Is(err, attendance.ErrBackend) {
			err = fmt.Errorf("%w: %v", attendance.ErrBackend, err)
		}
		return attendance.Record{}, err
	}

	s.advance(Confirm, &rec)
	metrics.CheckinsCompleted.Inc()
	s.cfg.Notifier.Notify("Attendance Recorded", rec.Date+" "+rec.Time)
	return rec, nil
}

// Restart goes back from Confirm to FaceDetect with the result cleared. The
// camera is not requested again until Begin.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(Confirm); err != nil {
		return err
	}
	s.result = nil
	s.stage = FaceDetect
	metrics.StageEntered.WithLabelValues(FaceDetect.String()).Inc()
	return nil
}

// Close ends the session, interrupting any running step and releasing every
// held device. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	video, audio := s.video, s.audio
	s.video, s.audio = nil, nil
	s.mu.Unlock()

	s.close()
	if video != nil {
		video.Release()
	}
	if audio != nil {
		audio.Release()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := float64(s.stage)
	if s.busy {
		step += 0.4
	}
	snap := Snapshot{
		Stage:      s.stage,
		Busy:       s.busy,
		Progress:   step / 3 * 100,
		Passphrase: s.cfg.Passphrase,
	}
	if s.result != nil {
		rec := *s.result
		snap.Result = &rec
	}
	return snap
}

func (s *Session) start(want Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(want); err != nil {
		return err
	}
	s.busy = true
	return nil
}

func (s *Session) checkLocked(want Stage) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.busy:
		return ErrBusy
	case s.stage != want:
		return fmt.Errorf("%w: session is in %s", ErrOutOfOrder, s.stage)
	}
	return nil
}

func (s *Session) advance(next Stage, result *attendance.Record) {
	s.mu.Lock()
	s.busy = false
	s.stage = next
	s.result = result
	s.mu.Unlock()
	metrics.StageEntered.WithLabelValues(next.String()).Inc()
}

func (s *Session) idle() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// hold stores h in slot unless the session closed while h was being
// acquired, in which case h is released straight away.
func (s *Session) hold(slot *Handle, h Handle) bool {
	s.mu.Lock()
	if s.closed {
		s.busy = false
		s.mu.Unlock()
		h.Release()
		return false
	}
	*slot = h
	s.mu.Unlock()
	return true
}

func (s *Session) releaseAudio() {
	s.mu.Lock()
	h := s.audio
	s.audio = nil
	s.mu.Unlock()
	if h != nil {
		h.Release()
	}
}

func (s *Session) interrupted(err error) error {
	if s.isClosed() {
		return ErrClosed
	}
	return err
}

// bind derives a context that is also cancelled when the session closes.
func (s *Session) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func denied(device string, err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, device, err)
}
