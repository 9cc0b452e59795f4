//go:build windows

package privilege

// IsElevated always reports false on Windows; the DRM trees this tool
// manipulates only exist on Linux.
func IsElevated() bool {
	return false
}
