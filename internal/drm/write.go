package drm

import (
	"fmt"
	"os"
	"path/filepath"
)

// Status tokens accepted by a connector's sysfs status file.
const (
	StatusOn     = "on"
	StatusOff    = "off"
	StatusDetect = "detect"
)

// edidResetToken clears a debugfs EDID override when written to it.
const edidResetToken = "reset"

// WriteEDIDOverride forces the connector to report the given EDID instead
// of whatever is physically attached. data must be a multiple of 128 bytes.
func (t *Topology) WriteEDIDOverride(id string, data []byte) error {
	path := filepath.Join(t.DevicePath, id, "edid_override")
	if err := writeKernelFile(path, data); err != nil {
		return err
	}
	log.Info("EDID override applied", "connector", id, "bytes", len(data))
	return nil
}

// ClearEDIDOverride removes a previously applied override so the connector
// reports its real EDID again.
func (t *Topology) ClearEDIDOverride(id string) error {
	path := filepath.Join(t.DevicePath, id, "edid_override")
	if err := writeKernelFile(path, []byte(edidResetToken)); err != nil {
		return err
	}
	log.Info("EDID override cleared", "connector", id)
	return nil
}

// SetStatus forces the connector on or off, or returns it to hotplug
// detection. token is one of StatusOn, StatusOff, StatusDetect.
func (t *Topology) SetStatus(id, token string) error {
	path := filepath.Join(t.sysfsRoot, t.Card+"-"+id, "status")
	if err := writeKernelFile(path, []byte(token)); err != nil {
		return err
	}
	log.Info("connector status set", "connector", id, "status", token)
	return nil
}

// StatusPath returns the sysfs status file for a connector. Exposed for
// diagnostics output.
func (t *Topology) StatusPath(id string) string {
	return filepath.Join(t.sysfsRoot, t.Card+"-"+id, "status")
}

// writeKernelFile performs a single non-retried write to a kernel interface
// file. Rejections are surfaced as-is: the kernel's answer is final.
func writeKernelFile(path string, data []byte) error {
	err := os.WriteFile(path, data, 0644)
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: writing %s: %v", ErrPermissionDenied, path, err)
	}
	return fmt.Errorf("%w: writing %s: %v", ErrWriteFailed, path, err)
}
