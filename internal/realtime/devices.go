package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"presensure/internal/checkin"
)

const (
	deviceVideo = "video"
	deviceAudio = "audio"
)

// remoteDevices asks the browser for its camera and microphone. Each
// acquisition is an ACQUIRE request answered by a DEVICE reply.
type remoteDevices struct {
	out     *conn
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan bool
}

func newRemoteDevices(out *conn, timeout time.Duration) *remoteDevices {
	return &remoteDevices{out: out, timeout: timeout, pending: make(map[string]chan bool)}
}

func (d *remoteDevices) AcquireVideo(ctx context.Context) (checkin.Handle, error) {
	return d.acquire(ctx, deviceVideo)
}

func (d *remoteDevices) AcquireAudio(ctx context.Context) (checkin.Handle, error) {
	return d.acquire(ctx, deviceAudio)
}

func (d *remoteDevices) acquire(ctx context.Context, device string) (checkin.Handle, error) {
	reply := make(chan bool, 1)
	d.mu.Lock()
	d.pending[device] = reply
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.pending, device)
		d.mu.Unlock()
	}()

	if err := d.out.send("ACQUIRE", map[string]string{"device": device}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case granted := <-reply:
		if !granted {
			return nil, fmt.Errorf("%w: %s refused by browser", checkin.ErrPermissionDenied, device)
		}
		return &remoteHandle{out: d.out, device: device}, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no %s reply from browser", checkin.ErrPermissionDenied, device)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reply routes a DEVICE message to the acquisition waiting for it. Replies
// nobody asked for are dropped.
func (d *remoteDevices) reply(device string, granted bool) {
	d.mu.Lock()
	ch := d.pending[device]
	d.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- granted:
	default:
	}
}

type remoteHandle struct {
	out    *conn
	device string
	once   sync.Once
}

// Release tells the browser to stop the device's tracks.
func (h *remoteHandle) Release() {
	h.once.Do(func() {
		_ = h.out.send("RELEASE", map[string]string{"device": h.device})
	})
}

type remoteNotifier struct {
	out *conn
}

func (n remoteNotifier) Notify(title, description string) {
	_ = n.out.send("NOTIFY", map[string]string{"title": title, "description": description})
}
