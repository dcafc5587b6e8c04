// Package config holds the validated visualization settings.
package config

import (
	"errors"
	"fmt"
)

// Accepted ranges. Values outside them are clamped, not rejected.
const (
	MinWaves, MaxWaves, DefaultWaves                   = 1, 16, 7
	MinLayers, MaxLayers, DefaultLayers                = 1, 4, 4
	MinWaveHeight, MaxWaveHeight, DefaultWaveHeight    = 10, 1920, 10
	MinBubbleSize, MaxBubbleSize, DefaultBubbleSize    = 10, 200, 20
	MinFooterHeight, MaxFooterHeight, DefaultFooter    = 20, 1080, 640
	MinBubblesPerLayer, MaxBubblesPerLayer, DefBubbles = 1, 36, 8
)

var (
	ErrNoLayerColors   = errors.New("no layer colors specified")
	ErrNotEnoughColors = errors.New("you specified more layers than colors")
	ErrInvalidDisplay  = errors.New("display size must be positive")
)

// Display is the drawing surface size in pixels.
type Display struct {
	Width  int
	Height int
}

// Options is the raw, user-facing form of the settings. It is what config
// files decode into and what CLI flags override.
type Options struct {
	WavesCount          int      `yaml:"waves" toml:"waves"`
	LayersCount         int      `yaml:"layers" toml:"layers"`
	WaveHeight          int      `yaml:"wave_height" toml:"wave_height"`
	BubbleSize          int      `yaml:"bubble_size" toml:"bubble_size"`
	FooterHeight        int      `yaml:"footer_height" toml:"footer_height"`
	BubblesPerLayer     int      `yaml:"bubbles_per_layer" toml:"bubbles_per_layer"`
	RandomizeBubbleSize bool     `yaml:"randomize_bubble_size" toml:"randomize_bubble_size"`
	BackgroundColor     string   `yaml:"background_color" toml:"background_color"`
	LayerColors         []string `yaml:"layer_colors" toml:"layer_colors"`
}

// DefaultOptions returns the stock settings with the first color preset.
func DefaultOptions() Options {
	p := Presets[0]
	return Options{
		WavesCount:      DefaultWaves,
		LayersCount:     DefaultLayers,
		WaveHeight:      DefaultWaveHeight,
		BubbleSize:      DefaultBubbleSize,
		FooterHeight:    DefaultFooter,
		BubblesPerLayer: DefBubbles,
		BackgroundColor: p.Background,
		LayerColors:     append([]string(nil), p.Layers...),
	}
}

// Config is the validated, immutable configuration a view is built from.
type Config struct {
	WavesCount          int
	LayersCount         int
	WaveHeight          float64
	FooterHeight        float64
	BubblesPerLayer     int
	RandomizeBubbleSize bool
	BackgroundColor     RGBA
	LayerColors         []RGBA
	Display             Display

	// BubbleSize is the bubble diameter as a fraction of the display width.
	BubbleSize float64
	// BubbleSizePx is the clamped pixel size BubbleSize was derived from.
	BubbleSizePx int
}

// New validates opts against display and returns the resulting Config.
// Numeric options are clamped into range; too few layer colors is an error.
func New(opts Options, display Display) (*Config, error) {
	if display.Width <= 0 || display.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDisplay, display.Width, display.Height)
	}
	if len(opts.LayerColors) == 0 {
		return nil, ErrNoLayerColors
	}

	layers := clampInt(opts.LayersCount, MinLayers, MaxLayers)
	if len(opts.LayerColors) < layers {
		return nil, fmt.Errorf("%w (%d layers, %d colors)", ErrNotEnoughColors, layers, len(opts.LayerColors))
	}

	colors := make([]RGBA, len(opts.LayerColors))
	for i, s := range opts.LayerColors {
		c, err := ParseColor(s)
		if err != nil {
			return nil, fmt.Errorf("layer color %d: %w", i, err)
		}
		colors[i] = c
	}

	bg := RGBA{A: 1}
	if opts.BackgroundColor != "" {
		c, err := ParseColor(opts.BackgroundColor)
		if err != nil {
			return nil, fmt.Errorf("background color: %w", err)
		}
		bg = c
	}

	bubblePx := clampInt(opts.BubbleSize, MinBubbleSize, MaxBubbleSize)
	return &Config{
		WavesCount:          clampInt(opts.WavesCount, MinWaves, MaxWaves),
		LayersCount:         layers,
		WaveHeight:          float64(clampInt(opts.WaveHeight, MinWaveHeight, MaxWaveHeight)),
		FooterHeight:        float64(clampInt(opts.FooterHeight, MinFooterHeight, MaxFooterHeight)),
		BubblesPerLayer:     clampInt(opts.BubblesPerLayer, MinBubblesPerLayer, MaxBubblesPerLayer),
		RandomizeBubbleSize: opts.RandomizeBubbleSize,
		BackgroundColor:     bg,
		LayerColors:         colors,
		Display:             display,
		BubbleSize:          float64(bubblePx) / float64(display.Width),
		BubbleSizePx:        bubblePx,
	}, nil
}

// WithColors returns a copy of c with new colors. The layer count check of
// New applies here too.
func (c *Config) WithColors(bg RGBA, layers []RGBA) (*Config, error) {
	if len(layers) < c.LayersCount {
		return nil, fmt.Errorf("%w (%d layers, %d colors)", ErrNotEnoughColors, c.LayersCount, len(layers))
	}
	cp := *c
	cp.BackgroundColor = bg
	cp.LayerColors = append([]RGBA(nil), layers...)
	return &cp, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
