package softphone

import (
	"context"
	"log/slog"
	"sync"
)

// DeviceState is the registration lifecycle of the softphone device.
type DeviceState string

const (
	DeviceUninitialized DeviceState = "uninitialized"
	DeviceInitializing  DeviceState = "initializing"
	DeviceReady         DeviceState = "ready"
	DeviceFailed        DeviceState = "failed"
	DeviceDestroyed     DeviceState = "destroyed"
)

// TokenSource mints signaling tokens for this device's identity. Refresh
// renews the identity session after an ErrSessionExpired.
type TokenSource interface {
	Issue(ctx context.Context, accountRef string) (string, error)
	Refresh(ctx context.Context) error
}

// Device manages one signaling registration per tab. At most one connection
// is alive at a time; a new initialization tears the previous one down
// before connecting, and stale in-flight initializations are discarded by
// generation number when the identity or selected account changes under
// them.
type Device struct {
	mu sync.Mutex

	state      DeviceState
	failure    *Failure
	generation uint64

	identity   string
	accountRef string

	tokens    TokenSource
	transport Transport
	session   *CallSession
	perms     *Permissions

	conn Conn
	log  *slog.Logger
}

func NewDevice(tokens TokenSource, transport Transport, session *CallSession, perms *Permissions, log *slog.Logger) *Device {
	if log == nil {
		log = slog.Default()
	}
	return &Device{
		state:     DeviceUninitialized,
		tokens:    tokens,
		transport: transport,
		session:   session,
		perms:     perms,
		log:       log,
	}
}

func (d *Device) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// LastFailure reports why the device is Failed, nil otherwise.
func (d *Device) LastFailure() *Failure {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failure
}

// Configure sets the identity and selected account. Any change tears down
// the current registration, invalidates in-flight initializations, and
// restarts the lifecycle from Uninitialized.
func (d *Device) Configure(ctx context.Context, identity, accountRef string) {
	d.mu.Lock()
	unchanged := d.identity == identity && d.accountRef == accountRef
	if unchanged && d.state != DeviceDestroyed && d.state != DeviceFailed {
		d.mu.Unlock()
		return
	}
	d.generation++
	d.identity = identity
	d.accountRef = accountRef
	d.failure = nil
	conn := d.detachConnLocked()
	d.state = DeviceUninitialized
	d.mu.Unlock()

	d.releaseConn(ctx, conn)
	d.session.SetAccount(accountRef)
}

// Init registers the device: mint a token, connect to signaling, subscribe
// to incoming calls. Failed is terminal; only a Configure change restarts
// the lifecycle. Returns nil when a concurrent Configure superseded this
// attempt.
func (d *Device) Init(ctx context.Context) error {
	d.mu.Lock()
	if d.state == DeviceDestroyed {
		d.mu.Unlock()
		return &Failure{Kind: FailureValidation, Message: "device is destroyed"}
	}
	if d.state == DeviceFailed {
		f := d.failure
		d.mu.Unlock()
		return f
	}
	if d.identity == "" {
		d.mu.Unlock()
		return &Failure{Kind: FailureValidation, Message: "no session identity"}
	}
	if d.state == DeviceReady || d.state == DeviceInitializing {
		d.mu.Unlock()
		return nil
	}
	d.generation++
	gen := d.generation
	identity, accountRef := d.identity, d.accountRef
	d.state = DeviceInitializing
	d.failure = nil
	conn := d.detachConnLocked()
	d.mu.Unlock()

	// Prior registration is fully released before a new one is built.
	d.releaseConn(ctx, conn)

	token, err := d.issueToken(ctx, accountRef)
	if err != nil {
		return d.fail(gen, classifyTokenError(err))
	}

	newConn, err := d.transport.Connect(ctx, token, identity)
	if err != nil {
		if f, ok := AsFailure(err); ok {
			return d.fail(gen, f)
		}
		return d.fail(gen, &Failure{Kind: FailureTransport, Message: "signaling registration failed", err: err})
	}

	d.mu.Lock()
	if gen != d.generation || d.state != DeviceInitializing {
		d.mu.Unlock()
		// Preconditions changed while we were connecting. This connection
		// never became the live one and was never bound to the call session,
		// so it is closed without touching whatever the successor is doing.
		d.discardConn(ctx, newConn)
		return nil
	}
	d.conn = newConn
	d.state = DeviceReady
	d.mu.Unlock()

	d.session.bind(newConn)
	go d.consumeIncoming(newConn, gen)
	d.log.Info("softphone device ready", "identity", identity)
	return nil
}

// Destroy releases the signaling connection and ends the lifecycle. It is
// sequential: the connection is closed and its subscription unhooked before
// the call returns.
func (d *Device) Destroy(ctx context.Context) {
	d.mu.Lock()
	d.generation++
	conn := d.detachConnLocked()
	d.state = DeviceDestroyed
	d.mu.Unlock()

	d.releaseConn(ctx, conn)
}

// issueToken retries once through a session refresh when the identity token
// has expired.
func (d *Device) issueToken(ctx context.Context, accountRef string) (string, error) {
	token, err := d.tokens.Issue(ctx, accountRef)
	if err == nil || !isSessionExpired(err) {
		return token, err
	}
	if rerr := d.tokens.Refresh(ctx); rerr != nil {
		return "", rerr
	}
	return d.tokens.Issue(ctx, accountRef)
}

func (d *Device) fail(gen uint64, f *Failure) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		// A newer cycle owns the state now.
		return nil
	}
	d.state = DeviceFailed
	d.failure = f
	return f
}

// detachConnLocked hands the live connection to the caller for release
// outside the lock.
func (d *Device) detachConnLocked() Conn {
	conn := d.conn
	d.conn = nil
	return conn
}

// releaseConn tears down the connection the session is bound to. Only the
// previously live connection goes through here; orphans from superseded
// initializations use discardConn so the successor's call is left alone.
func (d *Device) releaseConn(ctx context.Context, conn Conn) {
	if conn == nil {
		return
	}
	d.session.unbind()
	d.session.HandleRemoteDisconnect()
	d.discardConn(ctx, conn)
}

func (d *Device) discardConn(ctx context.Context, conn Conn) {
	if err := conn.Close(ctx); err != nil {
		d.log.Warn("signaling close failed", "err", err)
	}
}

// consumeIncoming is the device's single incoming-call subscription. It ends
// when the connection closes its channel, and events from a superseded
// generation are dropped so a rebuilt device never double-handles a ring.
func (d *Device) consumeIncoming(conn Conn, gen uint64) {
	for call := range conn.Incoming() {
		d.mu.Lock()
		live := gen == d.generation && d.state == DeviceReady
		d.mu.Unlock()
		if !live {
			continue
		}
		d.session.HandleIncoming(call)
		if d.perms.Microphone() == PermissionGranted {
			// Demonstrably ready to talk: answer without a click.
			if err := d.session.AcceptIncoming(context.Background()); err != nil {
				d.log.Warn("auto-accept failed", "err", err)
			}
		} else {
			d.session.onNotice("incoming call from " + call.From + ": grant microphone access to answer")
			d.log.Info("incoming call held for microphone permission", "from", call.From)
		}
	}
}
