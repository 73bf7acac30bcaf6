package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultMaxFrameBytes bounds a single frame read from disk.
const DefaultMaxFrameBytes = 5 << 20

// FileProvider serves frames from an image file. It stands in for a camera
// in the enroll CLI.
type FileProvider struct {
	Path          string
	MaxFrameBytes int64
}

// Acquire opens the file; a missing or unreadable file is an unavailable device.
func (p FileProvider) Acquire(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	limit := p.MaxFrameBytes
	if limit <= 0 {
		limit = DefaultMaxFrameBytes
	}
	return &fileDevice{file: f, limit: limit}, nil
}

type fileDevice struct {
	file  *os.File
	limit int64
}

var errFrameTooLarge = errors.New("frame exceeds size limit")

func (d *fileDevice) Frame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind capture file: %w", err)
	}
	frame, err := io.ReadAll(io.LimitReader(d.file, d.limit+1))
	if err != nil {
		return nil, fmt.Errorf("read capture file: %w", err)
	}
	if int64(len(frame)) > d.limit {
		return nil, errFrameTooLarge
	}
	return frame, nil
}

func (d *fileDevice) Close() error {
	return d.file.Close()
}
