// Command enroll captures a facial template from an image file and registers
// it for the citizen identified by the bearer token.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"civicpulse/internal/capture"
	"civicpulse/internal/platform/logger"
	"civicpulse/pkg/client"
)

func main() {
	var (
		server  = flag.String("server", "http://localhost:8080", "civicpulse base URL")
		image   = flag.String("image", "", "path to the captured image")
		token   = flag.String("token", os.Getenv("CIVICPULSE_TOKEN"), "bearer token (default $CIVICPULSE_TOKEN)")
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout")
		verify  = flag.Bool("verify", false, "verify the image against the stored enrollment instead of registering")
	)
	flag.Parse()

	log := logger.New("info", "text")
	if err := run(*server, *image, *token, *timeout, *verify, log); err != nil {
		log.Error("enrollment failed", "error", err)
		os.Exit(1)
	}
}

func run(server, image, token string, timeout time.Duration, verify bool, log *slog.Logger) error {
	if image == "" {
		return errors.New("-image is required")
	}
	if token == "" {
		return errors.New("-token or CIVICPULSE_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	api := client.New(server, token)
	session := capture.NewSession(capture.FileProvider{Path: image})

	if verify {
		var matched bool
		err := capture.Enroll(ctx, session, capture.RegistrarFunc(func(ctx context.Context, probe []byte) error {
			var err error
			matched, err = api.VerifyEnrollment(ctx, probe)
			return err
		}))
		if err != nil {
			return err
		}
		log.Info("verification finished", "matched", matched)
		return nil
	}

	if err := capture.Enroll(ctx, session, api); err != nil {
		return err
	}
	status, err := api.GetEnrollmentStatus(ctx)
	if err != nil {
		return err
	}
	log.Info("enrollment registered", "active", status.Active, "fingerprint", status.Fingerprint)
	return nil
}
