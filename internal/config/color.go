package config

import (
	"fmt"
	"strconv"
	"strings"
)

// RGBA is a color with float channels in [0,1].
type RGBA struct {
	R, G, B, A float32
}

// ParseColor accepts "#RRGGBB" or "#AARRGGBB" (alpha first).
func ParseColor(s string) (RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	a := uint64(0xff)
	if len(hex) == 8 {
		a = v >> 24 & 0xff
	}
	return RGBA{
		R: float32(v>>16&0xff) / 255,
		G: float32(v>>8&0xff) / 255,
		B: float32(v&0xff) / 255,
		A: float32(a) / 255,
	}, nil
}

// Bytes returns the color as 8-bit channels.
func (c RGBA) Bytes() (r, g, b, a uint8) {
	return to8(c.R), to8(c.G), to8(c.B), to8(c.A)
}

// Hex formats the color as "#RRGGBB", ignoring alpha.
func (c RGBA) Hex() string {
	r, g, b, _ := c.Bytes()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func to8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Preset is a named background plus layer palette (front layer first).
type Preset struct {
	Name       string
	Background string
	Layers     []string
}

var Presets = []Preset{
	{
		Name:       "sunset",
		Background: "#f5efe6",
		Layers:     []string{"#ffebb9", "#ffcf8a", "#ff9e6b", "#e8605c"},
	},
	{
		Name:       "ocean",
		Background: "#0b1d2e",
		Layers:     []string{"#b3e5fc", "#4fc3f7", "#0288d1", "#01579b"},
	},
	{
		Name:       "forest",
		Background: "#101a12",
		Layers:     []string{"#c5e1a5", "#8bc34a", "#558b2f", "#33691e"},
	},
	{
		Name:       "violet",
		Background: "#16101f",
		Layers:     []string{"#e1bee7", "#ba68c8", "#8e24aa", "#4a148c"},
	},
}

// PresetColors parses a preset into RGBA values.
func PresetColors(p Preset) (RGBA, []RGBA, error) {
	bg, err := ParseColor(p.Background)
	if err != nil {
		return RGBA{}, nil, err
	}
	layers := make([]RGBA, len(p.Layers))
	for i, s := range p.Layers {
		if layers[i], err = ParseColor(s); err != nil {
			return RGBA{}, nil, err
		}
	}
	return bg, layers, nil
}
