package softphone

import (
	"context"
	"sync"
)

// PermissionState mirrors the browser's media permission values.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPending PermissionState = "pending"
)

// MediaProber answers microphone and audio-output permission questions. The
// browser build backs this with the media-devices API; tests use a stub.
type MediaProber interface {
	MicrophoneState(ctx context.Context) (PermissionState, error)
	// RequestMicrophone actively prompts the user and reports the outcome.
	RequestMicrophone(ctx context.Context) (PermissionState, error)
	AudioOutputState(ctx context.Context) (PermissionState, error)
	// RequestAudioOutput prompts for output-device access (speaker routing)
	// and reports the outcome.
	RequestAudioOutput(ctx context.Context) (PermissionState, error)
}

// Permissions caches the last known microphone and audio-output states so
// gating checks do not hit the prober on every call attempt.
type Permissions struct {
	mu     sync.Mutex
	prober MediaProber
	mic    PermissionState
	output PermissionState
}

func NewPermissions(prober MediaProber) *Permissions {
	return &Permissions{prober: prober, mic: PermissionPending, output: PermissionPending}
}

func (p *Permissions) Microphone() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mic
}

func (p *Permissions) AudioOutput() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

// RefreshMicrophone probes without prompting and caches the result.
func (p *Permissions) RefreshMicrophone(ctx context.Context) (PermissionState, error) {
	state, err := p.prober.MicrophoneState(ctx)
	if err != nil {
		return PermissionPending, err
	}
	p.mu.Lock()
	p.mic = state
	p.mu.Unlock()
	return state, nil
}

// RequestMicrophone prompts the user and caches the outcome.
func (p *Permissions) RequestMicrophone(ctx context.Context) (PermissionState, error) {
	state, err := p.prober.RequestMicrophone(ctx)
	if err != nil {
		return PermissionPending, err
	}
	p.mu.Lock()
	p.mic = state
	p.mu.Unlock()
	return state, nil
}

// RefreshAudioOutput probes without prompting and caches the result.
func (p *Permissions) RefreshAudioOutput(ctx context.Context) (PermissionState, error) {
	state, err := p.prober.AudioOutputState(ctx)
	if err != nil {
		return PermissionPending, err
	}
	p.mu.Lock()
	p.output = state
	p.mu.Unlock()
	return state, nil
}

// RequestAudioOutput prompts the user and caches the outcome.
func (p *Permissions) RequestAudioOutput(ctx context.Context) (PermissionState, error) {
	state, err := p.prober.RequestAudioOutput(ctx)
	if err != nil {
		return PermissionPending, err
	}
	p.mu.Lock()
	p.output = state
	p.mu.Unlock()
	return state, nil
}
