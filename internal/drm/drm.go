// Package drm reads and mutates display connector state through the
// kernel's sysfs and debugfs DRM interfaces.
package drm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/glintstream/vdisplay/internal/logging"
)

var log = logging.L("drm")

// ConnectorKind classifies a connector by its physical interface.
type ConnectorKind string

const (
	KindDisplayPort ConnectorKind = "DisplayPort"
	KindHDMI        ConnectorKind = "HDMI"
	KindOther       ConnectorKind = "Other"
)

// Connector is a snapshot of one display output. Connector state is owned
// by the kernel; snapshots are never cached across invocations.
type Connector struct {
	ID        string        `json:"id"`
	Kind      ConnectorKind `json:"kind"`
	Connected bool          `json:"connected"`
	Enabled   bool          `json:"enabled"`
}

// Topology is the result of one scan: the selected DRM device, its card
// name in sysfs, and the connectors it exposes in kernel listing order.
type Topology struct {
	Card       string
	DevicePath string // debugfs directory of the DRM device
	sysfsRoot  string
	Connectors []Connector
}

// Registry enumerates connectors from the host's DRM trees. A Registry
// built as a struct literal skips the debugfs mount check, which lets tests
// point it at plain directories; use NewRegistry for real hardware.
type Registry struct {
	DebugfsRoot string
	SysfsRoot   string

	// checkMount verifies the debugfs tree is actually mounted before a
	// scan. nil skips the check.
	checkMount func(string) error
}

// NewRegistry returns a registry over the given debugfs DRI root
// (e.g. /sys/kernel/debug/dri) and sysfs DRM root (e.g. /sys/class/drm).
func NewRegistry(debugfsRoot, sysfsRoot string) *Registry {
	return &Registry{
		DebugfsRoot: debugfsRoot,
		SysfsRoot:   sysfsRoot,
		checkMount:  verifyDebugfs,
	}
}

var cardNameRe = regexp.MustCompile(`^card\d+$`)

// Scan reads the current connector topology. The first DRM device with a
// PCI address is used (the primary GPU). Results reflect the kernel's
// listing order and are reproducible while the topology is unchanged.
func (r *Registry) Scan() (*Topology, error) {
	if r.checkMount != nil {
		if err := r.checkMount(r.DebugfsRoot); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(r.DebugfsRoot)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrPermissionDenied, r.DebugfsRoot, err)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrScanFailed, r.DebugfsRoot, err)
	}

	var device string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "0000:") {
			device = e.Name()
			break
		}
	}
	if device == "" {
		return nil, fmt.Errorf("%w: no DRM device under %s", ErrScanFailed, r.DebugfsRoot)
	}

	card := r.resolveCard(device)
	devicePath := filepath.Join(r.DebugfsRoot, device)

	connEntries, err := os.ReadDir(devicePath)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrPermissionDenied, devicePath, err)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrScanFailed, devicePath, err)
	}

	topo := &Topology{
		Card:       card,
		DevicePath: devicePath,
		sysfsRoot:  r.SysfsRoot,
	}

	for _, e := range connEntries {
		if !e.IsDir() || !strings.Contains(e.Name(), "-") {
			continue
		}
		id := e.Name()

		status, err := readSysfsValue(r.SysfsRoot, card, id, "status")
		if err != nil {
			// Connectors the card exposes in debugfs but not in
			// sysfs (e.g. writeback) cannot host a display.
			log.Debug("skipping connector without sysfs status", "connector", id)
			continue
		}
		enabled, _ := readSysfsValue(r.SysfsRoot, card, id, "enabled")

		topo.Connectors = append(topo.Connectors, Connector{
			ID:        id,
			Kind:      classify(id),
			Connected: status == "connected",
			Enabled:   enabled == "enabled",
		})
	}

	log.Debug("scanned connector topology",
		"device", device, "card", card, "connectors", len(topo.Connectors))

	return topo, nil
}

// resolveCard maps a debugfs device name (PCI address) to its sysfs card
// directory by following each card's device symlink. Falls back to card1,
// the usual slot for a discrete GPU.
func (r *Registry) resolveCard(device string) string {
	entries, err := os.ReadDir(r.SysfsRoot)
	if err != nil {
		return "card1"
	}
	for _, e := range entries {
		if !cardNameRe.MatchString(e.Name()) {
			continue
		}
		target, err := os.Readlink(filepath.Join(r.SysfsRoot, e.Name(), "device"))
		if err != nil {
			continue
		}
		if strings.Contains(target, device) {
			return e.Name()
		}
	}
	return "card1"
}

func classify(id string) ConnectorKind {
	switch {
	case strings.HasPrefix(id, "DP-"):
		return KindDisplayPort
	case strings.HasPrefix(id, "HDMI-"):
		return KindHDMI
	default:
		return KindOther
	}
}

func readSysfsValue(root, card, id, file string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, card+"-"+id, file))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// verifyDebugfs confirms the path sits on a mounted debugfs. A missing or
// foreign filesystem means the environment is misconfigured, which gives a
// clearer diagnostic than a bare ENOENT from the scan.
func verifyDebugfs(root string) error {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return fmt.Errorf("%w: %s not accessible (is debugfs mounted?): %v", ErrScanFailed, root, err)
	}
	if st.Type != unix.DEBUGFS_MAGIC {
		return fmt.Errorf("%w: %s is not on debugfs", ErrScanFailed, root)
	}
	return nil
}
