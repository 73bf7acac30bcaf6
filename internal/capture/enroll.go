package capture

import "context"

// Registrar submits a captured template to the enrollment boundary.
type Registrar interface {
	RegisterEnrollment(ctx context.Context, template []byte) error
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(ctx context.Context, template []byte) error

func (f RegistrarFunc) RegisterEnrollment(ctx context.Context, template []byte) error {
	return f(ctx, template)
}

// Enroll acquires the device, captures one frame and registers it. The
// session is released on every path, including registration failure.
func Enroll(ctx context.Context, session *Session, registrar Registrar) (err error) {
	defer func() {
		if releaseErr := session.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	if err = session.Acquire(ctx); err != nil {
		return err
	}
	if err = session.Capture(ctx); err != nil {
		return err
	}
	return registrar.RegisterEnrollment(ctx, session.LastFrame())
}
