// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Stream constants
const (
	// StreamBoundary separates MJPEG parts
	StreamBoundary = "123456789000000000000987654321"
)

// Request constants
const (
	// MaxRequestBodySize caps JSON request bodies (1MB)
	MaxRequestBodySize = 1 << 20
)
