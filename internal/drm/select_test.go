package drm

import (
	"errors"
	"testing"
)

func TestPickSlotPrefersDisplayPort(t *testing.T) {
	connectors := []Connector{
		{ID: "HDMI-A-1", Kind: KindHDMI},
		{ID: "DP-1", Kind: KindDisplayPort},
	}

	id, err := PickSlot(connectors)
	if err != nil {
		t.Fatalf("PickSlot returned error: %v", err)
	}
	if id != "DP-1" {
		t.Errorf("picked %q, want DP-1", id)
	}
}

func TestPickSlotFirstInScanOrderWithinTier(t *testing.T) {
	connectors := []Connector{
		{ID: "DP-2", Kind: KindDisplayPort},
		{ID: "DP-1", Kind: KindDisplayPort},
	}

	id, err := PickSlot(connectors)
	if err != nil {
		t.Fatalf("PickSlot returned error: %v", err)
	}
	if id != "DP-2" {
		t.Errorf("picked %q, want DP-2 (first in scan order)", id)
	}
}

func TestPickSlotSkipsOccupiedAndEnabled(t *testing.T) {
	connectors := []Connector{
		{ID: "DP-1", Kind: KindDisplayPort, Connected: true},
		{ID: "DP-2", Kind: KindDisplayPort, Enabled: true},
		{ID: "HDMI-A-1", Kind: KindHDMI},
	}

	id, err := PickSlot(connectors)
	if err != nil {
		t.Fatalf("PickSlot returned error: %v", err)
	}
	if id != "HDMI-A-1" {
		t.Errorf("picked %q, want HDMI-A-1", id)
	}
}

func TestPickSlotFallsThroughToOther(t *testing.T) {
	connectors := []Connector{
		{ID: "DP-1", Kind: KindDisplayPort, Connected: true},
		{ID: "HDMI-A-1", Kind: KindHDMI, Connected: true},
		{ID: "DVI-D-1", Kind: KindOther},
	}

	id, err := PickSlot(connectors)
	if err != nil {
		t.Fatalf("PickSlot returned error: %v", err)
	}
	if id != "DVI-D-1" {
		t.Errorf("picked %q, want DVI-D-1", id)
	}
}

func TestPickSlotNoneAvailable(t *testing.T) {
	cases := []struct {
		name       string
		connectors []Connector
	}{
		{"empty set", nil},
		{"all occupied", []Connector{
			{ID: "DP-1", Kind: KindDisplayPort, Connected: true, Enabled: true},
			{ID: "HDMI-A-1", Kind: KindHDMI, Connected: true},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := PickSlot(tc.connectors); !errors.Is(err, ErrNoSlotAvailable) {
				t.Errorf("PickSlot error = %v, want ErrNoSlotAvailable", err)
			}
		})
	}
}
