package display

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/glintstream/vdisplay/internal/drm"
	"github.com/glintstream/vdisplay/internal/session"
)

// newTestManager builds a manager over fake debugfs/sysfs trees.
// Connectors are given as id -> [status, enabled].
func newTestManager(t *testing.T, connectors map[string][2]string) *Manager {
	t.Helper()
	root := t.TempDir()

	debugfs := filepath.Join(root, "dri")
	sysfs := filepath.Join(root, "drm")
	device := filepath.Join(debugfs, "0000:01:00.0")

	if err := os.MkdirAll(device, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(sysfs, "card1"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../../devices/pci0000:00/0000:01:00.0", filepath.Join(sysfs, "card1", "device")); err != nil {
		t.Fatal(err)
	}

	for id, state := range connectors {
		if err := os.MkdirAll(filepath.Join(device, id), 0755); err != nil {
			t.Fatal(err)
		}
		dir := filepath.Join(sysfs, "card1-"+id)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		mustWrite(t, filepath.Join(device, id, "edid_override"), "")
		mustWrite(t, filepath.Join(dir, "status"), state[0]+"\n")
		mustWrite(t, filepath.Join(dir, "enabled"), state[1]+"\n")
	}

	return &Manager{
		Registry:    &drm.Registry{DebugfsRoot: debugfs, SysfsRoot: sysfs},
		Store:       session.NewStore(filepath.Join(root, "session.json")),
		DisplayName: "Virtual Displ",
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func (m *Manager) statusFile(t *testing.T, id string) string {
	t.Helper()
	return filepath.Join(m.Registry.SysfsRoot, "card1-"+id, "status")
}

func (m *Manager) overrideFile(t *testing.T, id string) string {
	t.Helper()
	return filepath.Join(m.Registry.DebugfsRoot, "0000:01:00.0", id, "edid_override")
}

func TestConnectOverridesEmptySlotAndDisplacesEnabled(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"disconnected", "disabled"},
		"HDMI-A-1": {"connected", "enabled"},
	})

	if err := m.Connect(2560, 1440, 120); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	override := readFile(t, m.overrideFile(t, "DP-1"))
	if len(override) != 128 {
		t.Errorf("DP-1 edid_override is %d bytes, want 128", len(override))
	}
	if got := readFile(t, m.statusFile(t, "DP-1")); got != "on" {
		t.Errorf("DP-1 status = %q, want on", got)
	}
	if got := readFile(t, m.statusFile(t, "HDMI-A-1")); got != "off" {
		t.Errorf("HDMI-A-1 status = %q, want off", got)
	}

	state, err := m.Store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if state == nil {
		t.Fatal("no session state saved")
	}
	if state.VirtualConnector != "DP-1" {
		t.Errorf("virtual connector = %q, want DP-1", state.VirtualConnector)
	}
	if len(state.RestoredConnectors) != 1 || state.RestoredConnectors[0] != "HDMI-A-1" {
		t.Errorf("restored connectors = %v, want [HDMI-A-1]", state.RestoredConnectors)
	}
	if state.Width != 2560 || state.Height != 1440 || state.RefreshHz != 120 {
		t.Errorf("recorded mode = %dx%d@%d", state.Width, state.Height, state.RefreshHz)
	}
}

func TestConnectNoSlotLeavesNoSideEffects(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"connected", "enabled"},
		"HDMI-A-1": {"connected", "disabled"},
	})

	err := m.Connect(1920, 1080, 60)
	if !errors.Is(err, drm.ErrNoSlotAvailable) {
		t.Fatalf("Connect error = %v, want ErrNoSlotAvailable", err)
	}

	if got := readFile(t, m.statusFile(t, "DP-1")); got != "connected\n" {
		t.Errorf("DP-1 status mutated to %q", got)
	}
	state, err := m.Store.Load()
	if err != nil || state != nil {
		t.Errorf("session state after failed connect = (%+v, %v), want none", state, err)
	}
}

func TestConnectInvalidModeBeforeAnyWrite(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"disconnected", "disabled"},
		"HDMI-A-1": {"connected", "enabled"},
	})

	if err := m.Connect(99999, 1080, 60); err == nil {
		t.Fatal("Connect accepted an unrepresentable mode")
	}

	if got := readFile(t, m.overrideFile(t, "DP-1")); got != "" {
		t.Errorf("edid_override written despite invalid mode: %q", got)
	}
	if got := readFile(t, m.statusFile(t, "HDMI-A-1")); got != "connected\n" {
		t.Errorf("HDMI-A-1 status mutated to %q", got)
	}
}

func TestConnectDisconnectRoundTrip(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"disconnected", "disabled"},
		"DP-2":     {"connected", "enabled"},
		"HDMI-A-1": {"connected", "enabled"},
	})

	if err := m.Connect(1920, 1080, 60); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}

	if got := readFile(t, m.statusFile(t, "DP-1")); got != "off" {
		t.Errorf("virtual connector status = %q, want off", got)
	}
	for _, id := range []string{"DP-2", "HDMI-A-1"} {
		if got := readFile(t, m.statusFile(t, id)); got != "on" {
			t.Errorf("%s status = %q, want on (restored)", id, got)
		}
	}
	if got := readFile(t, m.overrideFile(t, "DP-1")); got != "reset" {
		t.Errorf("edid_override = %q, want reset token", got)
	}

	if _, err := os.Stat(m.Store.Path); !os.IsNotExist(err) {
		t.Error("session state file still present after disconnect")
	}
}

func TestDisconnectIdleIsNoOp(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1": {"disconnected", "disabled"},
	})

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect with no session returned error: %v", err)
	}
	if err := m.Disconnect(); err != nil {
		t.Fatalf("second Disconnect returned error: %v", err)
	}
	if got := readFile(t, m.statusFile(t, "DP-1")); got != "disconnected\n" {
		t.Errorf("DP-1 status mutated to %q by no-op disconnect", got)
	}
}

func TestReconnectTearsDownPriorSession(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"disconnected", "disabled"},
		"HDMI-A-1": {"connected", "enabled"},
	})

	if err := m.Connect(1920, 1080, 60); err != nil {
		t.Fatalf("first Connect returned error: %v", err)
	}
	first, err := m.Store.Load()
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Connect(2560, 1440, 120); err != nil {
		t.Fatalf("second Connect returned error: %v", err)
	}
	second, err := m.Store.Load()
	if err != nil {
		t.Fatal(err)
	}

	if second.SessionID == first.SessionID {
		t.Error("reconnect did not create a new session")
	}
	if second.Width != 2560 || second.RefreshHz != 120 {
		t.Errorf("second session mode = %dx%d@%d", second.Width, second.Height, second.RefreshHz)
	}
	// The prior session's HDMI connector was restored during teardown and
	// then displaced again by the new session.
	if len(second.RestoredConnectors) != 1 || second.RestoredConnectors[0] != "HDMI-A-1" {
		t.Errorf("second session restored connectors = %v, want [HDMI-A-1]", second.RestoredConnectors)
	}
	if got := readFile(t, m.statusFile(t, "HDMI-A-1")); got != "off" {
		t.Errorf("HDMI-A-1 status = %q, want off under new session", got)
	}
}

func TestDisconnectCorruptStateRecoversAllConnectors(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"disconnected", "disabled"},
		"HDMI-A-1": {"connected", "enabled"},
	})
	mustWrite(t, m.Store.Path, "not json at all")

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect with corrupt state returned error: %v", err)
	}

	for _, id := range []string{"DP-1", "HDMI-A-1"} {
		if got := readFile(t, m.statusFile(t, id)); got != "detect" {
			t.Errorf("%s status = %q, want detect", id, got)
		}
	}
	if _, err := os.Stat(m.Store.Path); !os.IsNotExist(err) {
		t.Error("corrupt state file not cleared")
	}
}

func TestConnectRollsBackWhenStateSaveFails(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"disconnected", "disabled"},
		"HDMI-A-1": {"connected", "enabled"},
	})
	// Fail persistence only at the final save, after the hardware writes
	// already happened.
	m.saveState = func(*session.State) error {
		return errors.New("disk full")
	}

	if err := m.Connect(1920, 1080, 60); err == nil {
		t.Fatal("Connect succeeded despite unpersistable state")
	}

	if got := readFile(t, m.statusFile(t, "DP-1")); got != "off" {
		t.Errorf("virtual connector status = %q, want off after rollback", got)
	}
	if got := readFile(t, m.statusFile(t, "HDMI-A-1")); got != "on" {
		t.Errorf("HDMI-A-1 status = %q, want on after rollback", got)
	}
	if got := readFile(t, m.overrideFile(t, "DP-1")); got != "reset" {
		t.Errorf("edid_override = %q, want reset after rollback", got)
	}
	state, err := m.Store.Load()
	if err != nil || state != nil {
		t.Errorf("session state after failed save = (%+v, %v), want none", state, err)
	}
}

func TestStatusReportsSessionAndTopology(t *testing.T) {
	m := newTestManager(t, map[string][2]string{
		"DP-1":     {"disconnected", "disabled"},
		"HDMI-A-1": {"connected", "enabled"},
	})

	state, topo, err := m.Status()
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if state != nil {
		t.Errorf("idle status reported session %+v", state)
	}
	if len(topo.Connectors) != 2 {
		t.Errorf("topology has %d connectors, want 2", len(topo.Connectors))
	}

	if err := m.Connect(1920, 1080, 60); err != nil {
		t.Fatal(err)
	}
	state, _, err = m.Status()
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if state == nil || state.VirtualConnector != "DP-1" {
		t.Errorf("active status = %+v, want session on DP-1", state)
	}
}
