// Package capture drives a local imaging device from acquisition to release.
//
// A Session is single-owner: it has no internal locking and callers must
// serialize their own calls. Release is the only path that frees the device
// and must run on every exit path; Enroll wires that up for the common flow.
package capture

import (
	"context"
	"fmt"

	dErrors "civicpulse/pkg/domain-errors"
	"civicpulse/pkg/platform/sentinel"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateLive
	StateCaptured
	// StateError is never entered by the device steps; Release leaves it like any other state.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateLive:
		return "live"
	case StateCaptured:
		return "captured"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the capture state machine.
type Session struct {
	provider  Provider
	state     State
	device    Device
	lastFrame []byte
}

// NewSession creates an idle session over provider.
func NewSession(provider Provider) *Session {
	return &Session{provider: provider, state: StateIdle}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// LastFrame returns the captured frame; nil unless the session is Captured.
func (s *Session) LastFrame() []byte {
	if s.state != StateCaptured {
		return nil
	}
	return s.lastFrame
}

type acquireResult struct {
	device Device
	err    error
}

// Acquire requests the device: Idle -> Acquiring -> Live. On provider failure
// or cancellation the session returns to Idle. A device the provider hands
// over after cancellation is closed by the session.
func (s *Session) Acquire(ctx context.Context) error {
	if s.state != StateIdle {
		return invalidState("acquire", s.state)
	}
	s.state = StateAcquiring

	results := make(chan acquireResult, 1)
	go func() {
		device, err := s.provider.Acquire(ctx)
		results <- acquireResult{device: device, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			s.state = StateIdle
			return dErrors.Wrap(res.err, dErrors.CodeDeviceUnavailable, "device unavailable")
		}
		if res.device == nil {
			s.state = StateIdle
			return dErrors.New(dErrors.CodeDeviceUnavailable, "provider returned no device")
		}
		s.device = res.device
		s.state = StateLive
		return nil
	case <-ctx.Done():
		s.state = StateIdle
		go closeLate(results)
		return dErrors.Wrap(ctx.Err(), dErrors.CodeDeviceUnavailable, "device acquisition abandoned")
	}
}

func closeLate(results <-chan acquireResult) {
	res := <-results
	if res.device != nil {
		_ = res.device.Close()
	}
}

// Capture snapshots the current frame: Live -> Captured. A failed read keeps
// the session Live so the caller may retry.
func (s *Session) Capture(ctx context.Context) error {
	if s.state != StateLive {
		return invalidState("capture", s.state)
	}
	frame, err := s.device.Frame(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDeviceUnavailable, "read frame")
	}
	if len(frame) == 0 {
		return dErrors.New(dErrors.CodeDeviceUnavailable, "device returned an empty frame")
	}
	s.lastFrame = frame
	s.state = StateCaptured
	return nil
}

// Retake discards the captured frame: Captured -> Live.
func (s *Session) Retake() error {
	if s.state != StateCaptured {
		return invalidState("retake", s.state)
	}
	s.lastFrame = nil
	s.state = StateLive
	return nil
}

// Release frees the device from any state and returns to Idle. Releasing an
// idle session is a no-op. The session is Idle even when closing the device fails.
func (s *Session) Release() error {
	device := s.device
	s.device = nil
	s.lastFrame = nil
	s.state = StateIdle
	if device == nil {
		return nil
	}
	if err := device.Close(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDeviceUnavailable, "close device")
	}
	return nil
}

func invalidState(op string, state State) error {
	return &dErrors.Error{
		Code:    dErrors.CodeConflict,
		Reason:  dErrors.ReasonInvalidState,
		Message: fmt.Sprintf("cannot %s while %s", op, state),
		Err:     sentinel.ErrInvalidState,
	}
}
