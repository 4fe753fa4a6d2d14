// Package camera arbitrates access to the single imaging device shared by the
// recognition loop, enrollment and live streaming.
package camera

import "time"

// PixelFormat is the encoding of Frame.Data.
type PixelFormat int

const (
	FormatJPEG PixelFormat = iota
	FormatRGB888
)

func (f PixelFormat) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatRGB888:
		return "rgb888"
	default:
		return "unknown"
	}
}

// Frame is one captured image. Data belongs to the lease that captured it and
// must not be used after the lease is released.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
}

// Clone returns a copy of the frame that outlives the lease.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}
