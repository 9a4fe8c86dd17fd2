package core

import "errors"

// Errors that abort startup. Everything the frame loop can recover
// from on its own (out-of-date and suboptimal surfaces) is handled
// inside FrameSync and never reaches the caller as an error.
var (
	// ErrNoSuitableDevice means no enumerated physical device satisfies
	// the stated requirements.
	ErrNoSuitableDevice = errors.New("core: no suitable physical device")

	// ErrDeviceCreation means logical device creation failed.
	ErrDeviceCreation = errors.New("core: logical device creation failed")

	// ErrSwapChainCreation means swap chain creation or recreation
	// failed, including the surface queries feeding it.
	ErrSwapChainCreation = errors.New("core: swap chain creation failed")

	// ErrFenceTimeout means a bounded fence wait expired before the
	// GPU signaled frame completion.
	ErrFenceTimeout = errors.New("core: fence wait timed out")

	// ErrDeviceLost means the device became unusable mid-frame.
	ErrDeviceLost = errors.New("core: device lost")

	// ErrInvalidState means an operation was called outside the
	// object's lifecycle, for example creating an unbound swap chain.
	ErrInvalidState = errors.New("core: operation invalid in current state")
)
