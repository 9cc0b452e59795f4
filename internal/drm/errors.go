package drm

import "errors"

var (
	ErrScanFailed       = errors.New("drm: connector scan failed")
	ErrNoSlotAvailable  = errors.New("drm: no empty connector slot available")
	ErrPermissionDenied = errors.New("drm: permission denied (not running elevated?)")
	ErrWriteFailed      = errors.New("drm: kernel rejected connector write")
)
