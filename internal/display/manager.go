// Package display orchestrates virtual display sessions: it overrides an
// empty connector with a synthetic EDID, swaps output over to it, and later
// restores the physical connectors it displaced.
package display

import (
	"errors"
	"fmt"

	"github.com/glintstream/vdisplay/internal/config"
	"github.com/glintstream/vdisplay/internal/drm"
	"github.com/glintstream/vdisplay/internal/edid"
	"github.com/glintstream/vdisplay/internal/logging"
	"github.com/glintstream/vdisplay/internal/session"
)

var log = logging.L("display")

// Manager runs the connect/disconnect protocols as strictly ordered
// sequences of kernel writes.
//
// Precondition: the session manager driving this binary must not issue
// connect and disconnect concurrently. No lock spans the multi-step
// hardware mutation; overlapping invocations race on connector state.
type Manager struct {
	Registry    *drm.Registry
	Store       *session.Store
	DisplayName string

	// saveState persists the session record, defaulting to Store.Save.
	// Replaced in tests to fail persistence after the hardware writes.
	saveState func(*session.State) error
}

// NewManager wires a manager from loaded configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		Registry:    drm.NewRegistry(cfg.DebugfsRoot, cfg.SysfsRoot),
		Store:       session.NewStore(cfg.StateFile),
		DisplayName: cfg.DisplayName,
	}
}

// Connect presents a virtual display matching the requested mode. If a
// session is already active it is torn down first, so sessions never stack.
func (m *Manager) Connect(width, height, refreshHz int) error {
	prior, err := m.Store.Load()
	switch {
	case errors.Is(err, session.ErrStateCorrupt):
		log.Error("state file corrupt on connect, recovering connectors", logging.KeyError, err)
		if recErr := m.recoverUnknownState(); recErr != nil {
			return recErr
		}
	case err != nil:
		return err
	case prior != nil:
		log.Info("active session found, reconnecting",
			logging.KeySessionID, prior.SessionID, logging.KeyConnector, prior.VirtualConnector)
		if err := m.teardown(prior); err != nil {
			return fmt.Errorf("tearing down prior session: %w", err)
		}
	}

	topo, err := m.Registry.Scan()
	if err != nil {
		return err
	}

	slot, err := drm.PickSlot(topo.Connectors)
	if err != nil {
		return err
	}

	block, err := edid.Build(width, height, refreshHz, m.DisplayName)
	if err != nil {
		return err
	}

	log.Info("connecting virtual display",
		logging.KeyConnector, slot, "width", width, "height", height, "refreshHz", refreshHz)

	if err := topo.WriteEDIDOverride(slot, block.Bytes()); err != nil {
		return err
	}

	// Everything currently driving output gets turned off and recorded,
	// in scan order, so disconnect can bring it back the same way.
	var displaced []string
	for _, c := range topo.Connectors {
		if c.Enabled && c.ID != slot {
			displaced = append(displaced, c.ID)
		}
	}

	var disabled []string
	for _, id := range displaced {
		if err := topo.SetStatus(id, drm.StatusOff); err != nil {
			m.rollbackConnect(topo, slot, disabled)
			return err
		}
		disabled = append(disabled, id)
	}

	if err := topo.SetStatus(slot, drm.StatusOn); err != nil {
		m.rollbackConnect(topo, slot, disabled)
		return err
	}

	state := session.New(topo.Card, slot, displaced, width, height, refreshHz)
	save := m.saveState
	if save == nil {
		save = m.Store.Save
	}
	if err := save(state); err != nil {
		// The hardware is already mutated; without the record a later
		// disconnect cannot restore it. Undo rather than strand it.
		log.Error("state save failed after hardware writes, rolling back", logging.KeyError, err)
		_ = topo.SetStatus(slot, drm.StatusOff)
		m.rollbackConnect(topo, slot, disabled)
		return fmt.Errorf("persisting session state: %w", err)
	}

	logging.WithSession(log, state.SessionID).Info("virtual display connected",
		logging.KeyConnector, slot, "displaced", len(displaced))

	return nil
}

// Disconnect restores the connectors recorded at connect time. With no
// active session it is a no-op; with an unreadable record it returns every
// connector to kernel autodetection rather than leaving the display dark.
func (m *Manager) Disconnect() error {
	state, err := m.Store.Load()
	if errors.Is(err, session.ErrStateCorrupt) {
		log.Error("state file corrupt on disconnect, recovering connectors", logging.KeyError, err)
		return m.recoverUnknownState()
	}
	if err != nil {
		return err
	}
	if state == nil {
		log.Info("no active session, nothing to disconnect")
		return nil
	}

	return m.teardown(state)
}

// Status reports the active session (nil when idle) and a fresh scan.
func (m *Manager) Status() (*session.State, *drm.Topology, error) {
	state, err := m.Store.Load()
	if err != nil {
		return nil, nil, err
	}
	topo, err := m.Registry.Scan()
	if err != nil {
		return state, nil, err
	}
	return state, topo, nil
}

// teardown disables the virtual connector and re-enables the displaced
// physical connectors in the order they were recorded. All restores are
// attempted even if one fails; the state record is only cleared once every
// restore succeeded, so a retry can pick up where this left off.
func (m *Manager) teardown(state *session.State) error {
	topo, err := m.Registry.Scan()
	if err != nil {
		return err
	}

	logger := logging.WithSession(log, state.SessionID)
	logger.Info("disconnecting virtual display", logging.KeyConnector, state.VirtualConnector)

	if err := topo.SetStatus(state.VirtualConnector, drm.StatusOff); err != nil {
		return err
	}
	if err := topo.ClearEDIDOverride(state.VirtualConnector); err != nil {
		logger.Warn("could not clear EDID override", logging.KeyConnector, state.VirtualConnector, logging.KeyError, err)
	}

	var restoreErrs []error
	for _, id := range state.RestoredConnectors {
		if err := topo.SetStatus(id, drm.StatusOn); err != nil {
			restoreErrs = append(restoreErrs, err)
		}
	}
	if len(restoreErrs) > 0 {
		return errors.Join(restoreErrs...)
	}

	if err := m.Store.Clear(); err != nil {
		return err
	}

	logger.Info("virtual display disconnected")
	return nil
}

// recoverUnknownState handles a corrupt state file: what was done to the
// connectors is unknown, so every one of them is returned to hotplug
// detection and the record is discarded. A harmless re-probe beats leaving
// a display forced off.
func (m *Manager) recoverUnknownState() error {
	topo, err := m.Registry.Scan()
	if err != nil {
		return err
	}

	var errs []error
	for _, c := range topo.Connectors {
		if err := topo.SetStatus(c.ID, drm.StatusDetect); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.Store.Clear(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// rollbackConnect is the best-effort undo after a failed connect: drop the
// override and re-enable whatever was already turned off. Failures here are
// logged, not returned; the original error is the one that matters.
func (m *Manager) rollbackConnect(topo *drm.Topology, slot string, disabled []string) {
	if err := topo.ClearEDIDOverride(slot); err != nil {
		log.Warn("rollback: could not clear EDID override", logging.KeyConnector, slot, logging.KeyError, err)
	}
	for _, id := range disabled {
		if err := topo.SetStatus(id, drm.StatusOn); err != nil {
			log.Warn("rollback: could not re-enable connector", logging.KeyConnector, id, logging.KeyError, err)
		}
	}
}
