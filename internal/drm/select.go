package drm

// Slot priority: DisplayPort drives higher resolutions and refresh rates
// than HDMI on most cards, so empty DP connectors are claimed first.
var slotPriority = []ConnectorKind{KindDisplayPort, KindHDMI, KindOther}

// PickSlot selects the connector that will host the virtual display: the
// first empty one in scan order, preferring DisplayPort over HDMI over
// everything else. A connector is empty when nothing is attached and it is
// not driving output.
func PickSlot(connectors []Connector) (string, error) {
	for _, kind := range slotPriority {
		for _, c := range connectors {
			if c.Kind == kind && !c.Connected && !c.Enabled {
				return c.ID, nil
			}
		}
	}
	return "", ErrNoSlotAvailable
}
