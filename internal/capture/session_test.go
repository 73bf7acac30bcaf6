package capture_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"civicpulse/internal/capture"
	dErrors "civicpulse/pkg/domain-errors"
	"civicpulse/pkg/platform/sentinel"
)

type fakeDevice struct {
	frame    []byte
	frameErr error
	closes   atomic.Int32
	closed   chan struct{}
}

func newFakeDevice(frame []byte) *fakeDevice {
	return &fakeDevice{frame: frame, closed: make(chan struct{}, 1)}
}

func (d *fakeDevice) Frame(context.Context) ([]byte, error) {
	return d.frame, d.frameErr
}

func (d *fakeDevice) Close() error {
	if d.closes.Add(1) == 1 {
		d.closed <- struct{}{}
	}
	return nil
}

func staticProvider(device capture.Device, err error) capture.Provider {
	return capture.ProviderFunc(func(context.Context) (capture.Device, error) {
		return device, err
	})
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given an idle session over a working device", t, func() {
		device := newFakeDevice([]byte("frame-1"))
		session := capture.NewSession(staticProvider(device, nil))
		ctx := context.Background()

		So(session.State(), ShouldEqual, capture.StateIdle)

		Convey("When the device is acquired", func() {
			So(session.Acquire(ctx), ShouldBeNil)

			Convey("Then the session is live and owns the device", func() {
				So(session.State(), ShouldEqual, capture.StateLive)
				So(device.closes.Load(), ShouldEqual, int32(0))
			})

			Convey("And a frame is captured", func() {
				So(session.Capture(ctx), ShouldBeNil)

				Convey("Then the frame is held in the captured state", func() {
					So(session.State(), ShouldEqual, capture.StateCaptured)
					So(string(session.LastFrame()), ShouldEqual, "frame-1")
				})

				Convey("And a retake discards the frame without reacquiring", func() {
					So(session.Retake(), ShouldBeNil)
					So(session.State(), ShouldEqual, capture.StateLive)
					So(session.LastFrame(), ShouldBeNil)
					So(device.closes.Load(), ShouldEqual, int32(0))
				})

				Convey("And the session is released", func() {
					So(session.Release(), ShouldBeNil)

					Convey("Then the device is closed exactly once", func() {
						So(session.State(), ShouldEqual, capture.StateIdle)
						So(session.LastFrame(), ShouldBeNil)
						So(device.closes.Load(), ShouldEqual, int32(1))
					})

					Convey("And a second release is a no-op", func() {
						So(session.Release(), ShouldBeNil)
						So(device.closes.Load(), ShouldEqual, int32(1))
					})
				})
			})
		})

		Convey("When release is called on an idle session", func() {
			Convey("Then it is a no-op", func() {
				So(session.Release(), ShouldBeNil)
				So(session.State(), ShouldEqual, capture.StateIdle)
			})
		})
	})
}

func TestSessionRejectsOutOfOrderCalls(t *testing.T) {
	Convey("Given a session", t, func() {
		device := newFakeDevice([]byte("frame"))
		session := capture.NewSession(staticProvider(device, nil))
		ctx := context.Background()

		Convey("When capturing before acquiring", func() {
			err := session.Capture(ctx)

			Convey("Then it fails with invalid_state and stays idle", func() {
				So(errors.Is(err, sentinel.ErrInvalidState), ShouldBeTrue)
				So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeConflict)
				So(dErrors.ReasonOf(err), ShouldEqual, dErrors.ReasonInvalidState)
				So(session.State(), ShouldEqual, capture.StateIdle)
			})
		})

		Convey("When retaking while live", func() {
			So(session.Acquire(ctx), ShouldBeNil)
			err := session.Retake()

			Convey("Then it fails and the session stays live", func() {
				So(errors.Is(err, sentinel.ErrInvalidState), ShouldBeTrue)
				So(session.State(), ShouldEqual, capture.StateLive)
			})
		})

		Convey("When acquiring twice", func() {
			So(session.Acquire(ctx), ShouldBeNil)
			err := session.Acquire(ctx)

			Convey("Then the second call fails without touching the device", func() {
				So(errors.Is(err, sentinel.ErrInvalidState), ShouldBeTrue)
				So(device.closes.Load(), ShouldEqual, int32(0))
			})
		})
	})
}

func TestSessionDeviceFailures(t *testing.T) {
	Convey("Given a provider with no device", t, func() {
		session := capture.NewSession(staticProvider(nil, errors.New("permission denied")))

		Convey("When acquiring", func() {
			err := session.Acquire(context.Background())

			Convey("Then it reports device_unavailable and returns to idle", func() {
				So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeDeviceUnavailable)
				So(session.State(), ShouldEqual, capture.StateIdle)
			})

			Convey("And the caller may retry", func() {
				err := session.Acquire(context.Background())
				So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeDeviceUnavailable)
			})
		})
	})

	Convey("Given a device whose frame read fails", t, func() {
		device := newFakeDevice(nil)
		device.frameErr = errors.New("sensor glitch")
		session := capture.NewSession(staticProvider(device, nil))
		So(session.Acquire(context.Background()), ShouldBeNil)

		Convey("When capturing", func() {
			err := session.Capture(context.Background())

			Convey("Then the session stays live for another attempt", func() {
				So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeDeviceUnavailable)
				So(session.State(), ShouldEqual, capture.StateLive)
			})
		})
	})
}

func TestSessionAbandonedAcquire(t *testing.T) {
	Convey("Given a provider that blocks until the user grants access", t, func() {
		grant := make(chan struct{})
		device := newFakeDevice([]byte("late"))
		provider := capture.ProviderFunc(func(context.Context) (capture.Device, error) {
			<-grant
			return device, nil
		})
		session := capture.NewSession(provider)

		Convey("When the caller abandons acquire and then releases", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := session.Acquire(ctx)
			So(session.Release(), ShouldBeNil)

			Convey("Then acquire reports device_unavailable and the session is idle", func() {
				So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeDeviceUnavailable)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(session.State(), ShouldEqual, capture.StateIdle)
			})

			Convey("And the device that arrives late is closed", func() {
				close(grant)
				select {
				case <-device.closed:
				case <-time.After(2 * time.Second):
				}
				So(device.closes.Load(), ShouldEqual, int32(1))
			})
		})
	})
}

func TestEnroll(t *testing.T) {
	Convey("Given a working device", t, func() {
		device := newFakeDevice([]byte("template"))
		session := capture.NewSession(staticProvider(device, nil))

		Convey("When registration succeeds", func() {
			var submitted []byte
			err := capture.Enroll(context.Background(), session, capture.RegistrarFunc(func(_ context.Context, tpl []byte) error {
				submitted = tpl
				return nil
			}))

			Convey("Then the frame is submitted and the device released", func() {
				So(err, ShouldBeNil)
				So(string(submitted), ShouldEqual, "template")
				So(session.State(), ShouldEqual, capture.StateIdle)
				So(device.closes.Load(), ShouldEqual, int32(1))
			})
		})

		Convey("When registration fails", func() {
			err := capture.Enroll(context.Background(), session, capture.RegistrarFunc(func(context.Context, []byte) error {
				return dErrors.New(dErrors.CodeStorageUnavailable, "down")
			}))

			Convey("Then the error surfaces and the device is still released", func() {
				So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeStorageUnavailable)
				So(session.State(), ShouldEqual, capture.StateIdle)
				So(device.closes.Load(), ShouldEqual, int32(1))
			})
		})
	})
}

func TestFileProvider(t *testing.T) {
	Convey("Given an image file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "face.jpg")
		So(os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o600), ShouldBeNil)

		Convey("When a session captures from it", func() {
			session := capture.NewSession(capture.FileProvider{Path: path})
			So(session.Acquire(context.Background()), ShouldBeNil)
			So(session.Capture(context.Background()), ShouldBeNil)

			Convey("Then the frame is the file content", func() {
				So(session.LastFrame(), ShouldResemble, []byte{0xff, 0xd8, 0xff, 0xd9})
				So(session.Release(), ShouldBeNil)
			})
		})

		Convey("When the file exceeds the frame limit", func() {
			session := capture.NewSession(capture.FileProvider{Path: path, MaxFrameBytes: 2})
			So(session.Acquire(context.Background()), ShouldBeNil)
			err := session.Capture(context.Background())

			Convey("Then capture fails and the session stays live", func() {
				So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeDeviceUnavailable)
				So(session.State(), ShouldEqual, capture.StateLive)
				So(session.Release(), ShouldBeNil)
			})
		})
	})

	Convey("Given a missing file", t, func() {
		session := capture.NewSession(capture.FileProvider{Path: filepath.Join(t.TempDir(), "missing.jpg")})

		Convey("Then acquire reports device_unavailable", func() {
			err := session.Acquire(context.Background())
			So(dErrors.CodeOf(err), ShouldEqual, dErrors.CodeDeviceUnavailable)
			So(session.State(), ShouldEqual, capture.StateIdle)
		})
	})
}
