package capture

import "context"

// Device is an acquired imaging device. A session owns it exclusively from
// Acquire until Release.
type Device interface {
	// Frame returns a snapshot of the current frame.
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// Provider grants exclusive access to a device. Acquire may block on user
// consent or hardware initialisation and must honour ctx.
type Provider interface {
	Acquire(ctx context.Context) (Device, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Device, error)

func (f ProviderFunc) Acquire(ctx context.Context) (Device, error) { return f(ctx) }
