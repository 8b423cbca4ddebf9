package driver

import "github.com/cockroachdb/errors"

// Result sentinels. Backends wrap or mark their native failures with these so that the
// core can classify them with errors.Is.
var (
	ErrTimeout              = errors.New("timeout expired")
	ErrNotReady             = errors.New("not ready")
	ErrOutOfDate            = errors.New("swapchain out of date")
	ErrSurfaceLost          = errors.New("surface lost")
	ErrDeviceLost           = errors.New("device lost")
	ErrOutOfMemory          = errors.New("out of memory")
	ErrIncompatibleDriver   = errors.New("incompatible driver")
	ErrExtensionNotPresent  = errors.New("extension not present")
	ErrLayerNotPresent      = errors.New("layer not present")
	ErrInitializationFailed = errors.New("initialization failed")
	ErrUnknown              = errors.New("unknown driver error")
)
