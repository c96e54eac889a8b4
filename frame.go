package graphruntime

import "fmt"

// BytesPerPixel is the size of one RGBA pixel.
const BytesPerPixel = 4

// Frame is a single video frame in packed RGBA form, row-major, no padding.
type Frame struct {
	Pixels []byte
	Width  int
	Height int

	// Timestamp is the presentation time in microseconds. Zero lets the
	// solution assign one from its monotonic clock. Graph engines require
	// strictly increasing timestamps per stream.
	Timestamp int64
}

// Empty reports whether the frame carries no pixel data. Empty frames are
// skipped by the solution rather than rejected.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Pixels) == 0
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * BytesPerPixel; len(f.Pixels) != want {
		return fmt.Errorf("frame buffer is %d bytes, want %d for %dx%d RGBA",
			len(f.Pixels), want, f.Width, f.Height)
	}
	return nil
}
