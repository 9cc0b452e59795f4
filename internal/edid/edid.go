// Package edid synthesizes EDID 1.4 base blocks for virtual displays.
//
// The generated block advertises a single detailed timing descriptor for the
// requested mode. The timing uses reduced-blanking style intervals; it does
// not match any published CVT/GTF standard, only the self-consistency the
// kernel's EDID parser requires.
package edid

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BlockSize is the size of an EDID base block.
const BlockSize = 128

// Representable mode ranges. Active pixel counts occupy 12-bit fields in
// the detailed timing descriptor, so 4095 is a hard ceiling.
const (
	MinWidth   = 640
	MaxWidth   = 4095
	MinHeight  = 480
	MaxHeight  = 4095
	MinRefresh = 24
	MaxRefresh = 240
)

// DefaultDisplayName is used when no product name is configured.
const DefaultDisplayName = "Virtual Displ"

// maxNameLen is the width of the product name descriptor field.
const maxNameLen = 13

// Block is an immutable 128-byte EDID base block.
type Block [BlockSize]byte

// Bytes returns the block as a slice for writing to the kernel.
func (b Block) Bytes() []byte {
	out := make([]byte, BlockSize)
	copy(out, b[:])
	return out
}

// Checksum returns the sum of all block bytes mod 256. Zero means valid.
func (b Block) Checksum() byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// Build produces an EDID base block describing a display whose preferred
// mode is width x height at refreshHz. Deterministic: identical inputs
// always yield identical bytes.
func Build(width, height, refreshHz int, displayName string) (Block, error) {
	var b Block

	if width < MinWidth || width > MaxWidth {
		return b, fmt.Errorf("%w: width %d outside [%d, %d]", ErrInvalidMode, width, MinWidth, MaxWidth)
	}
	if height < MinHeight || height > MaxHeight {
		return b, fmt.Errorf("%w: height %d outside [%d, %d]", ErrInvalidMode, height, MinHeight, MaxHeight)
	}
	if refreshHz < MinRefresh || refreshHz > MaxRefresh {
		return b, fmt.Errorf("%w: refresh %d outside [%d, %d]", ErrInvalidMode, refreshHz, MinRefresh, MaxRefresh)
	}

	if displayName == "" {
		displayName = DefaultDisplayName
	}
	if len(displayName) > maxNameLen {
		displayName = displayName[:maxNameLen]
	}

	// Header magic
	copy(b[0:8], []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00})

	// Manufacturer ID "VHD", 5-bit packed ASCII. Synthetic vendor, not
	// registered with anyone.
	b[8] = 0x56
	b[9] = 0x24

	// Product code and a serial derived from the mode so distinct modes
	// present as distinct monitors.
	binary.LittleEndian.PutUint16(b[10:12], 0x5344)
	serial := uint32(width)<<16 | uint32(height)<<4 | uint32(refreshHz)&0x0F
	binary.LittleEndian.PutUint32(b[12:16], serial)

	// Week 1 of 2023
	b[16] = 1
	b[17] = 33

	// EDID 1.4
	b[18] = 1
	b[19] = 4

	// Digital input, 8-bit color, DisplayPort
	b[20] = 0xA5

	hsizeCm, vsizeCm := screenSizeCm(width, height)
	b[21] = clampByte(hsizeCm)
	b[22] = clampByte(vsizeCm)

	// Gamma 2.2
	b[23] = 220

	// No DPMS, RGB 4:4:4, sRGB, preferred timing, continuous frequency
	b[24] = 0x1E

	// sRGB chromaticity coordinates
	copy(b[25:35], []byte{0xEE, 0x91, 0xA3, 0x54, 0x4C, 0x99, 0x26, 0x0F, 0x50, 0x54})

	// No established timings; standard timings all unused
	for i := 38; i < 54; i += 2 {
		b[i] = 0x01
		b[i+1] = 0x01
	}

	writeDetailedTiming(&b, width, height, refreshHz, hsizeCm)

	writeNameDescriptor(&b, displayName)
	writeRangeLimits(&b, refreshHz)

	// Dummy descriptor
	b[108] = 0x00
	b[109] = 0x00
	b[110] = 0x00
	b[111] = 0x10
	b[112] = 0x00

	// No extension blocks
	b[126] = 0

	b[127] = checksum(b[0:127])

	return b, nil
}

// writeDetailedTiming fills the preferred-mode descriptor at bytes 54-71.
func writeDetailedTiming(b *Block, width, height, refreshHz, hsizeCm int) {
	hActive := width
	vActive := height

	// Reduced-blanking style intervals: 8% horizontal (min 80 px),
	// 2.5% vertical (min 23 lines for sync)
	hBlank := width * 8 / 100
	if hBlank < 80 {
		hBlank = 80
	}
	vBlank := height * 25 / 1000
	if vBlank < 23 {
		vBlank = 23
	}

	// Pixel clock field is in 10 kHz units, 16 bits
	clockHz := (hActive + hBlank) * (vActive + vBlank) * refreshHz
	clock := clockHz / 10_000
	if clock > 0xFFFF {
		clock = 0xFFFF
	}
	binary.LittleEndian.PutUint16(b[54:56], uint16(clock))

	b[56] = byte(hActive)
	b[57] = byte(hBlank)
	b[58] = byte(hActive>>8)<<4 | byte(hBlank>>8)

	b[59] = byte(vActive)
	b[60] = byte(vBlank)
	b[61] = byte(vActive>>8)<<4 | byte(vBlank>>8)

	hSyncOffset := hBlank / 5
	hSyncWidth := hBlank * 2 / 5
	const vSyncOffset = 2
	const vSyncWidth = 6

	b[62] = byte(hSyncOffset)
	b[63] = byte(hSyncWidth)
	b[64] = byte(vSyncOffset&0x0F)<<4 | byte(vSyncWidth&0x0F)
	b[65] = byte(hSyncOffset>>8&0x03)<<6 |
		byte(hSyncWidth>>8&0x03)<<4 |
		byte(vSyncOffset>>4&0x03)<<2 |
		byte(vSyncWidth>>4&0x03)

	hsizeMm := hsizeCm * 10
	vsizeMm := hsizeMm * height / width
	b[66] = byte(hsizeMm)
	b[67] = byte(vsizeMm)
	b[68] = byte(hsizeMm>>8)<<4 | byte(vsizeMm>>8)

	b[69] = 0    // H border
	b[70] = 0    // V border
	b[71] = 0x18 // non-interlaced, digital separate sync
}

// writeNameDescriptor fills the product name descriptor at bytes 72-89.
func writeNameDescriptor(b *Block, name string) {
	b[72] = 0x00
	b[73] = 0x00
	b[74] = 0x00
	b[75] = 0xFC
	b[76] = 0x00
	for i := 0; i < maxNameLen; i++ {
		if i < len(name) {
			b[77+i] = name[i]
		} else {
			b[77+i] = ' '
		}
	}
}

// writeRangeLimits fills the display range limits descriptor at bytes 90-107.
func writeRangeLimits(b *Block, refreshHz int) {
	minV := refreshHz - 20
	if minV < 24 {
		minV = 24
	}
	maxV := refreshHz + 20
	if maxV > 255 {
		maxV = 255
	}

	b[90] = 0x00
	b[91] = 0x00
	b[92] = 0x00
	b[93] = 0xFD
	b[94] = 0x00
	b[95] = byte(minV)
	b[96] = byte(maxV)
	b[97] = 30  // min H rate, kHz
	b[98] = 160 // max H rate, kHz
	b[99] = 220 // max pixel clock, 10 MHz units
	b[100] = 0x00
	b[101] = 0x0A
	for i := 102; i < 108; i++ {
		b[i] = 0x20
	}
}

// screenSizeCm estimates a plausible physical size assuming 96 DPI.
func screenSizeCm(width, height int) (h, v int) {
	diagonalIn := math.Sqrt(float64(width*width+height*height)) / 96
	aspect := float64(width) / float64(height)
	hCm := diagonalIn * 2.54 / math.Sqrt(1+1/(aspect*aspect))
	return int(hCm), int(hCm / aspect)
}

func clampByte(v int) byte {
	if v > 255 {
		return 255
	}
	return byte(v)
}

func checksum(data []byte) byte {
	var sum byte
	for _, v := range data {
		sum += v
	}
	return byte(256 - int(sum))
}
