package scanner

import (
	"fmt"
	"strings"
)

// ErrorKind classifies camera failures for user-facing handling.
type ErrorKind int

const (
	// Unknown covers failures with no specific classification.
	Unknown ErrorKind = iota
	// PermissionDenied means access to the video device was refused.
	PermissionDenied
	// DeviceNotFound means no usable camera exists.
	DeviceNotFound
	// DeviceBusy means another process holds the camera.
	DeviceBusy
	// ConstraintsUnsatisfiable means the requested device or format
	// cannot be provided.
	ConstraintsUnsatisfiable
)

// String returns a short identifier for the kind.
func (k ErrorKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case DeviceNotFound:
		return "device_not_found"
	case DeviceBusy:
		return "device_busy"
	case ConstraintsUnsatisfiable:
		return "constraints_unsatisfiable"
	default:
		return "unknown"
	}
}

// UserMessage returns the message shown when a scan fails with this kind.
func (k ErrorKind) UserMessage() string {
	switch k {
	case PermissionDenied:
		return "Camera access denied. Check device permissions and try again."
	case DeviceNotFound:
		return "No camera found. Connect a camera or enter the IMEI manually."
	case DeviceBusy:
		return "Camera is in use by another application."
	case ConstraintsUnsatisfiable:
		return "The selected camera does not support scanning. Try the other camera."
	default:
		return "Camera error. Enter the IMEI manually."
	}
}

// Error is the failure type for camera operations.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("scanner %s error: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("scanner %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("scanner %s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStderr maps decoder stderr output to an ErrorKind.
// The decoder reports v4l2 failures as free text, so this is a
// substring match over the lowercased output.
func classifyStderr(output string) ErrorKind {
	text := strings.ToLower(output)

	switch {
	case strings.Contains(text, "permission denied"),
		strings.Contains(text, "not authorized"):
		return PermissionDenied
	case strings.Contains(text, "no such file or directory"),
		strings.Contains(text, "no such device"),
		strings.Contains(text, "no video device"),
		strings.Contains(text, "cannot find"):
		return DeviceNotFound
	case strings.Contains(text, "device or resource busy"),
		strings.Contains(text, "device busy"):
		return DeviceBusy
	case strings.Contains(text, "unsupported format"),
		strings.Contains(text, "invalid argument"),
		strings.Contains(text, "does not support"):
		return ConstraintsUnsatisfiable
	default:
		return Unknown
	}
}
