package softphone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SessionState is the call lifecycle position of one browser tab.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateDialing   SessionState = "dialing"
	StateRinging   SessionState = "ringing"
	StateConnected SessionState = "connected"
)

// minDialDigits is the shortest dialable address, counted after stripping
// formatting characters.
const minDialDigits = 10

// CallPlacer originates an outbound call server-side and returns the
// provider call id.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to, accountRef string) (string, error)
}

// tickerFactory lets tests drive the one-second duration ticker by hand.
type tickerFactory func() (<-chan time.Time, func())

func secondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// CallSession is the per-tab call state machine. Every mutation runs behind
// one mutex, mirroring the serialized event loop it models, and the session
// owns its duration ticker outright so no leaked timer can outlive a call.
type CallSession struct {
	mu sync.Mutex

	state      SessionState
	callID     string
	peer       string
	accountRef string

	duration int // seconds in Connected
	muted    bool
	speaker  bool

	placer  CallPlacer
	perms   *Permissions
	conn    Conn
	refresh func(ctx context.Context) error

	newTicker tickerFactory
	tickQuit  chan struct{}
	stopTick  func()

	onNotice func(string)
	log      *slog.Logger
}

// NewCallSession wires a session to its server-side call placer and the
// permission cache. notice receives user-visible one-liners and may be nil.
// refresh renews the identity session after an expiry and may be nil.
func NewCallSession(placer CallPlacer, perms *Permissions, refresh func(ctx context.Context) error, notice func(string), log *slog.Logger) *CallSession {
	if notice == nil {
		notice = func(string) {}
	}
	if log == nil {
		log = slog.Default()
	}
	return &CallSession{
		state:     StateIdle,
		placer:    placer,
		perms:     perms,
		refresh:   refresh,
		newTicker: secondTicker,
		onNotice:  notice,
		log:       log,
	}
}

func (s *CallSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Duration reports the seconds spent Connected on the current call.
func (s *CallSession) Duration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *CallSession) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *CallSession) SpeakerOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaker
}

// Peer is the remote address of the current or pending call.
func (s *CallSession) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// SetAccount selects the account used for subsequent originations.
func (s *CallSession) SetAccount(accountRef string) {
	s.mu.Lock()
	s.accountRef = accountRef
	s.mu.Unlock()
}

// bind attaches the signaling connection the device established. Call
// control operations are no-ops against the provider until bound.
func (s *CallSession) bind(conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *CallSession) unbind() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

// Originate places an outbound call to address. It refuses while another
// call is active, while the address has fewer than ten digits, and while the
// microphone is not granted; the permission case prompts the user rather
// than failing silently.
func (s *CallSession) Originate(ctx context.Context, address string) error {
	digits := stripNonDigits(address)
	if len(digits) < minDialDigits {
		return &Failure{
			Kind:    FailureValidation,
			Message: fmt.Sprintf("dialed address needs at least %d digits", minDialDigits),
		}
	}

	if s.perms.Microphone() != PermissionGranted {
		state, err := s.perms.RequestMicrophone(ctx)
		if err != nil || state != PermissionGranted {
			return &Failure{Kind: FailurePermissionDenied, Message: "microphone access is required to place calls", err: err}
		}
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return &Failure{
			Kind:    FailureValidation,
			Message: fmt.Sprintf("a call is already %s", s.state),
		}
	}
	s.state = StateDialing
	s.peer = address
	accountRef := s.accountRef
	s.mu.Unlock()

	callID, err := s.placeWithRetry(ctx, address, accountRef)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.peer = ""
		s.mu.Unlock()
		return classifyCallError(err)
	}

	s.mu.Lock()
	s.callID = callID
	s.mu.Unlock()
	return nil
}

// placeWithRetry refreshes the identity session once on expiry and retries
// the origination once.
func (s *CallSession) placeWithRetry(ctx context.Context, address, accountRef string) (string, error) {
	callID, err := s.placer.PlaceCall(ctx, address, accountRef)
	if err == nil || s.refresh == nil || !isSessionExpired(err) {
		return callID, err
	}
	if rerr := s.refresh(ctx); rerr != nil {
		return "", rerr
	}
	return s.placer.PlaceCall(ctx, address, accountRef)
}

// HandleIncoming records an inbound ring. A session already on a call lets
// the provider keep ringing the other leg; it does not preempt.
func (s *CallSession) HandleIncoming(call IncomingCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		s.log.Info("ignoring incoming call while busy", "state", s.state, "from", call.From)
		return
	}
	s.state = StateRinging
	s.callID = call.CallID
	s.peer = call.From
}

// AcceptIncoming answers the pending inbound call. Only legal from Ringing.
func (s *CallSession) AcceptIncoming(ctx context.Context) error {
	if s.perms.Microphone() != PermissionGranted {
		state, err := s.perms.RequestMicrophone(ctx)
		if err != nil || state != PermissionGranted {
			return &Failure{Kind: FailurePermissionDenied, Message: "microphone access is required to answer", err: err}
		}
	}

	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		return &Failure{Kind: FailureValidation, Message: "no call is ringing"}
	}
	conn, callID := s.conn, s.callID
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Accept(ctx, callID); err != nil {
			return &Failure{Kind: FailureTransport, Message: "accept failed", err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRinging {
		return nil
	}
	s.state = StateConnected
	s.startTickerLocked()
	return nil
}

// RejectIncoming declines the pending inbound call. Only legal from Ringing.
func (s *CallSession) RejectIncoming(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		return &Failure{Kind: FailureValidation, Message: "no call is ringing"}
	}
	conn, callID := s.conn, s.callID
	s.state = StateIdle
	s.callID = ""
	s.peer = ""
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Reject(ctx, callID); err != nil {
			s.log.Warn("reject signal failed", "err", err)
		}
	}
	return nil
}

// HandleRemoteConnect marks the outbound leg answered. Driven by the
// signaling connection's call-progress events.
func (s *CallSession) HandleRemoteConnect(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDialing {
		return
	}
	if callID != "" {
		s.callID = callID
	}
	s.state = StateConnected
	s.startTickerLocked()
}

// Hangup ends the call from any active state. Mute and speaker flags always
// reset, the ticker always stops, and the user always gets an ended notice.
func (s *CallSession) Hangup(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	conn, callID := s.conn, s.callID
	dur := s.resetLocked()
	s.mu.Unlock()

	if conn != nil && callID != "" {
		if err := conn.Hangup(ctx, callID); err != nil {
			s.log.Warn("hangup signal failed", "err", err)
		}
	}
	s.onNotice(fmt.Sprintf("call ended, duration=%ds", dur))
	return nil
}

// HandleRemoteDisconnect is Hangup's twin for provider-initiated ends.
func (s *CallSession) HandleRemoteDisconnect() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	dur := s.resetLocked()
	s.mu.Unlock()
	s.onNotice(fmt.Sprintf("call ended, duration=%ds", dur))
}

// ToggleMute flips outbound-audio mute. Only legal while Connected; the new
// value is relayed to the connection.
func (s *CallSession) ToggleMute(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return false, &Failure{Kind: FailureValidation, Message: "not connected"}
	}
	s.muted = !s.muted
	muted := s.muted
	conn, callID := s.conn, s.callID
	s.mu.Unlock()

	if conn != nil {
		if err := conn.SetMuted(ctx, callID, muted); err != nil {
			return muted, &Failure{Kind: FailureTransport, Message: "mute signal failed", err: err}
		}
	}
	return muted, nil
}

// ToggleSpeaker flips the local output routing flag. It is not relayed to
// the connection; output routing is not a property of the call. Turning the
// speaker on needs audio-output access, prompted for like the microphone.
func (s *CallSession) ToggleSpeaker(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return false, &Failure{Kind: FailureValidation, Message: "not connected"}
	}
	turningOn := !s.speaker
	s.mu.Unlock()

	if turningOn && s.perms.AudioOutput() != PermissionGranted {
		state, err := s.perms.RequestAudioOutput(ctx)
		if err != nil || state != PermissionGranted {
			return false, &Failure{Kind: FailurePermissionDenied, Message: "audio output access is required for speaker mode", err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return false, &Failure{Kind: FailureValidation, Message: "not connected"}
	}
	s.speaker = !s.speaker
	return s.speaker, nil
}

// resetLocked returns the session to Idle and reports the final duration.
func (s *CallSession) resetLocked() int {
	dur := s.duration
	s.stopTickerLocked()
	s.state = StateIdle
	s.callID = ""
	s.peer = ""
	s.duration = 0
	s.muted = false
	s.speaker = false
	return dur
}

func (s *CallSession) startTickerLocked() {
	s.stopTickerLocked()
	s.duration = 0
	ch, stop := s.newTicker()
	quit := make(chan struct{})
	s.tickQuit = quit
	s.stopTick = stop
	go func() {
		for {
			select {
			case <-ch:
				s.mu.Lock()
				if s.state == StateConnected {
					s.duration++
				}
				s.mu.Unlock()
			case <-quit:
				return
			}
		}
	}()
}

func (s *CallSession) stopTickerLocked() {
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}
	if s.tickQuit != nil {
		close(s.tickQuit)
		s.tickQuit = nil
	}
}

func isSessionExpired(err error) bool {
	f, ok := AsFailure(err)
	if ok && f.Kind == FailureSessionExpired {
		return true
	}
	return errors.Is(err, ErrSessionExpired)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
