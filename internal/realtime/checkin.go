package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"presensure/internal/attendance"
	"presensure/internal/auth"
	"presensure/internal/checkin"
	"presensure/internal/cloudinary"
	"presensure/internal/metrics"
)

// SnapshotUploader stores a captured face frame and returns its hosted URL.
type SnapshotUploader interface {
	UploadDataURL(ctx context.Context, data, publicID string) (*cloudinary.UploadResult, error)
}

// Checkins serves one check-in session per websocket connection.
type Checkins struct {
	recorder     checkin.Recorder
	uploader     SnapshotUploader // nil when image storage is not configured
	timings      checkin.Timings
	replyTimeout time.Duration
}

// NewCheckins creates the check-in endpoint. uploader may be nil.
func NewCheckins(recorder checkin.Recorder, uploader SnapshotUploader, timings checkin.Timings, replyTimeout time.Duration) *Checkins {
	if replyTimeout <= 0 {
		replyTimeout = time.Minute
	}
	return &Checkins{recorder: recorder, uploader: uploader, timings: timings, replyTimeout: replyTimeout}
}

type beginData struct {
	Snapshot string `json:"snapshot"`
}

type deviceData struct {
	Device  string `json:"device"`
	Granted bool   `json:"granted"`
}

// Serve upgrades the request and runs the session until the browser leaves.
func (h *Checkins) Serve(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("ws upgrade failed:", err)
		return
	}
	out := &conn{ws: ws}
	defer out.close()

	metrics.ActiveSessions.WithLabelValues("checkin").Inc()
	defer metrics.ActiveSessions.WithLabelValues("checkin").Dec()

	devices := newRemoteDevices(out, h.replyTimeout)
	sess := checkin.NewSession(checkin.Identity{StudentID: claims.Subject, StudentName: claims.Name}, checkin.Config{
		Devices:    devices,
		Notifier:   remoteNotifier{out: out},
		Recorder:   h.recorder,
		Timings:    h.timings,
		Passphrase: attendance.Passphrase(),
	})
	log.Printf("check-in session opened for %s", claims.Subject)

	ctx, cancel := context.WithCancel(context.Background())
	actions := make(chan Envelope, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.run(ctx, sess, out, actions)
	}()

	_ = out.send("STATE", sess.Snapshot())
	actions <- Envelope{Event: "BEGIN"}

	for {
		var msg Envelope
		if err := ws.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Event == "LEAVE" {
			break
		}
		if msg.Event == "DEVICE" {
			var d deviceData
			if err := json.Unmarshal(msg.Data, &d); err != nil {
				_ = out.sendError("invalid device reply")
				continue
			}
			devices.reply(d.Device, d.Granted)
			continue
		}
		select {
		case actions <- msg:
		default:
			_ = out.sendError("too many pending actions")
		}
	}

	// Leaving the page: release the camera/microphone and stop the worker.
	sess.Close()
	cancel()
	close(actions)
	<-done
	log.Printf("check-in session closed for %s at stage %s", claims.Subject, sess.Snapshot().Stage)
}

// run executes client actions one at a time.
func (h *Checkins) run(ctx context.Context, sess *checkin.Session, out *conn, actions <-chan Envelope) {
	for msg := range actions {
		var err error
		switch msg.Event {
		case "BEGIN":
			h.attachSnapshot(ctx, sess, msg.Data)
			err = sess.Begin(ctx)
		case "LIVENESS_DONE":
			err = sess.ConfirmLiveness(ctx)
		case "START_RECORDING":
			_, err = sess.StartRecording(ctx)
		case "RESTART":
			err = sess.Restart()
		default:
			err = fmt.Errorf("unknown event %q", msg.Event)
		}
		if errors.Is(err, checkin.ErrClosed) || errors.Is(err, context.Canceled) {
			continue
		}
		if err != nil {
			_ = out.sendError(err.Error())
		}
		_ = out.send("STATE", sess.Snapshot())
	}
}

func (h *Checkins) attachSnapshot(ctx context.Context, sess *checkin.Session, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var data beginData
	if err := json.Unmarshal(raw, &data); err != nil || data.Snapshot == "" {
		return
	}
	if !cloudinary.IsDataURL(data.Snapshot) {
		sess.SetSnapshotURL(data.Snapshot)
		return
	}
	if h.uploader == nil {
		return
	}
	who := sess.Identity()
	res, err := h.uploader.UploadDataURL(ctx, data.Snapshot, "")
	if err != nil {
		log.Printf("warning: snapshot upload for %s failed: %v", who.StudentID, err)
		return
	}
	sess.SetSnapshotURL(res.SecureURL)
}
