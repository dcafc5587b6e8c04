package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

var testDisplay = Display{Width: 1080, Height: 1920}

func TestNewClampsOutOfRangeValues(t *testing.T) {
	opts := DefaultOptions()
	opts.WavesCount = 40
	opts.LayersCount = 0
	opts.WaveHeight = 1
	opts.BubbleSize = 500
	opts.FooterHeight = 5000
	opts.BubblesPerLayer = -3

	cfg, err := New(opts, testDisplay)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if cfg.WavesCount != MaxWaves {
		t.Fatalf("expected waves clamped to %d, got %d", MaxWaves, cfg.WavesCount)
	}
	if cfg.LayersCount != MinLayers {
		t.Fatalf("expected layers clamped to %d, got %d", MinLayers, cfg.LayersCount)
	}
	if cfg.WaveHeight != MinWaveHeight {
		t.Fatalf("expected wave height clamped to %d, got %v", MinWaveHeight, cfg.WaveHeight)
	}
	if cfg.BubbleSizePx != MaxBubbleSize {
		t.Fatalf("expected bubble size clamped to %d, got %d", MaxBubbleSize, cfg.BubbleSizePx)
	}
	if cfg.FooterHeight != MaxFooterHeight {
		t.Fatalf("expected footer clamped to %d, got %v", MaxFooterHeight, cfg.FooterHeight)
	}
	if cfg.BubblesPerLayer != MinBubblesPerLayer {
		t.Fatalf("expected bubbles clamped to %d, got %d", MinBubblesPerLayer, cfg.BubblesPerLayer)
	}
}

func TestNewNormalizesBubbleSizeByWidth(t *testing.T) {
	cfg, err := New(DefaultOptions(), testDisplay)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	want := float64(DefaultBubbleSize) / 1080
	if math.Abs(cfg.BubbleSize-want) > 1e-12 {
		t.Fatalf("expected bubble size %v, got %v", want, cfg.BubbleSize)
	}
}

func TestNewRejectsTooFewColors(t *testing.T) {
	opts := DefaultOptions()
	opts.LayersCount = 3
	opts.LayerColors = []string{"#ffffff", "#000000"}

	_, err := New(opts, testDisplay)
	if !errors.Is(err, ErrNotEnoughColors) {
		t.Fatalf("expected ErrNotEnoughColors, got %v", err)
	}

	opts.LayerColors = nil
	if _, err := New(opts, testDisplay); !errors.Is(err, ErrNoLayerColors) {
		t.Fatalf("expected ErrNoLayerColors, got %v", err)
	}
}

func TestNewKeepsExtraColors(t *testing.T) {
	opts := DefaultOptions()
	opts.LayersCount = 2
	cfg, err := New(opts, testDisplay)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if len(cfg.LayerColors) != 4 {
		t.Fatalf("expected all 4 colors kept, got %d", len(cfg.LayerColors))
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#80ff0000")
	if err != nil {
		t.Fatalf("ParseColor returned error: %v", err)
	}
	if c.R != 1 || c.G != 0 || c.B != 0 {
		t.Fatalf("expected pure red, got %+v", c)
	}
	if math.Abs(float64(c.A)-128.0/255) > 1e-6 {
		t.Fatalf("expected alpha 128/255, got %v", c.A)
	}
	if got := c.Hex(); got != "#ff0000" {
		t.Fatalf("expected #ff0000, got %s", got)
	}
	if _, err := ParseColor("red"); err == nil {
		t.Fatal("expected error for named color")
	}
}

func TestLoadYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "vis.yaml")
	yamlData := "waves: 5\nlayers: 2\nlayer_colors: [\"#111111\", \"#222222\"]\n"
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load yaml returned error: %v", err)
	}
	if opts.WavesCount != 5 || opts.LayersCount != 2 || len(opts.LayerColors) != 2 {
		t.Fatalf("unexpected yaml options: %+v", opts)
	}
	if opts.FooterHeight != DefaultFooter {
		t.Fatalf("expected default footer to survive, got %d", opts.FooterHeight)
	}

	tomlPath := filepath.Join(dir, "vis.toml")
	tomlData := "bubbles_per_layer = 12\nrandomize_bubble_size = true\n"
	if err := os.WriteFile(tomlPath, []byte(tomlData), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err = Load(tomlPath)
	if err != nil {
		t.Fatalf("Load toml returned error: %v", err)
	}
	if opts.BubblesPerLayer != 12 || !opts.RandomizeBubbleSize {
		t.Fatalf("unexpected toml options: %+v", opts)
	}

	if _, err := Load(filepath.Join(dir, "vis.ini")); err == nil {
		t.Fatal("expected error for missing file")
	}
	iniPath := filepath.Join(dir, "vis.json")
	if err := os.WriteFile(iniPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(iniPath); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	opts := DefaultOptions()
	opts.WavesCount = 3
	if err := Save(path, opts); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.WavesCount != 3 {
		t.Fatalf("expected waves 3, got %d", got.WavesCount)
	}
}
