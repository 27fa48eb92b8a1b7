package softphone

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeProber struct {
	mu           sync.Mutex
	state        PermissionState
	requestState PermissionState
	requests     int

	outputState        PermissionState
	outputRequestState PermissionState
	outputRequests     int
}

func (p *fakeProber) MicrophoneState(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, nil
}

func (p *fakeProber) RequestMicrophone(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	p.state = p.requestState
	return p.requestState, nil
}

func (p *fakeProber) AudioOutputState(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputState, nil
}

func (p *fakeProber) RequestAudioOutput(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputRequests++
	p.outputState = p.outputRequestState
	return p.outputRequestState, nil
}

type fakeConn struct {
	incoming chan IncomingCall

	mu       sync.Mutex
	accepted []string
	rejected []string
	hungup   []string
	mutes    []bool
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan IncomingCall, 4)}
}

func (c *fakeConn) Incoming() <-chan IncomingCall { return c.incoming }

func (c *fakeConn) Accept(ctx context.Context, callID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted = append(c.accepted, callID)
	return nil
}

func (c *fakeConn) Reject(ctx context.Context, callID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected = append(c.rejected, callID)
	return nil
}

func (c *fakeConn) Hangup(ctx context.Context, callID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hungup = append(c.hungup, callID)
	return nil
}

func (c *fakeConn) SetMuted(ctx context.Context, callID string, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutes = append(c.mutes, muted)
	return nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.incoming)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) acceptedCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.accepted...)
}

type fakeTransport struct {
	mu       sync.Mutex
	conns    []*fakeConn
	err      error
	connects int

	// gate, when set, blocks Connect until closed. Lets tests change the
	// device's preconditions mid-initialization.
	gate chan struct{}
}

func (t *fakeTransport) Connect(ctx context.Context, token, identity string) (Conn, error) {
	t.mu.Lock()
	gate := t.gate
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	if t.err != nil {
		return nil, t.err
	}
	c := newFakeConn()
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type fakePlacer struct {
	mu     sync.Mutex
	callID string
	errs   []error // popped per call; nil entries mean success
	calls  int
	lastTo string
}

func (p *fakePlacer) PlaceCall(ctx context.Context, to, accountRef string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastTo = to
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if p.callID == "" {
		return "CA-test", nil
	}
	return p.callID, nil
}

type fakeTokens struct {
	mu        sync.Mutex
	token     string
	errs      []error // popped per Issue; nil entries mean success
	issues    int
	refreshes int
}

func (f *fakeTokens) Issue(ctx context.Context, accountRef string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if f.token == "" {
		return "tok", nil
	}
	return f.token, nil
}

func (f *fakeTokens) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
