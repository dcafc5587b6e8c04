package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/bubblewave/internal/capture"
	"github.com/olivier-w/bubblewave/internal/config"
	"github.com/olivier-w/bubblewave/internal/glview"
	"github.com/olivier-w/bubblewave/internal/logger"
	"github.com/olivier-w/bubblewave/internal/media"
	"github.com/olivier-w/bubblewave/internal/source"
	"github.com/olivier-w/bubblewave/internal/ui"
	"github.com/olivier-w/bubblewave/internal/view"
)

// The animation geometry is laid out for a portrait phone screen; hosts
// only change the aspect ratio it is drawn at.
const (
	referenceWidth  = 1080
	referenceHeight = 1920
)

type flags struct {
	source     string
	file       string
	configPath string
	saveConfig string
	preset     string
	gui        bool
	width      int
	height     int
	logLevel   string
	logFile    string
	layers     int
	waves      int
	bubbles    int
	rate       int
	rmsMin     float64
	rmsMax     float64
	shuffle    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.source, "source", "", "audio source: mic, file or speech (default: pick interactively)")
	flag.StringVar(&f.file, "file", "", "audio file, playlist or directory to play with -source file")
	flag.StringVar(&f.configPath, "config", "", "YAML or TOML settings file")
	flag.StringVar(&f.saveConfig, "save-config", "", "write the effective settings as YAML to this path and exit")
	flag.StringVar(&f.preset, "preset", "", "color preset: sunset, ocean, forest or violet")
	flag.BoolVar(&f.gui, "gui", false, "draw in a window instead of the terminal")
	flag.IntVar(&f.width, "width", 540, "window width with -gui")
	flag.IntVar(&f.height, "height", 960, "window height with -gui")
	flag.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn, error or off")
	flag.StringVar(&f.logFile, "log-file", "", "append logs to this file")
	flag.IntVar(&f.layers, "layers", 0, "number of layers, 1-4")
	flag.IntVar(&f.waves, "waves", 0, "waves per layer, 1-16")
	flag.IntVar(&f.bubbles, "bubbles", 0, "bubbles per layer, 1-36")
	flag.IntVar(&f.rate, "rate", capture.DefaultSampleRate, "microphone sample rate in Hz")
	flag.Float64Var(&f.rmsMin, "rms-min", 0, "speech level in dB shown as silence (default -2.12)")
	flag.Float64Var(&f.rmsMax, "rms-max", 0, "speech level in dB shown as full loudness (default 10)")
	flag.BoolVar(&f.shuffle, "shuffle", false, "shuffle the playlist")
	flag.Parse()

	if f.file == "" && flag.NArg() > 0 {
		f.file = flag.Arg(0)
	}
	if f.source == "" && f.file != "" {
		f.source = "file"
	}
	return f
}

func main() {
	if err := run(parseFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	logger.SetLevel(f.logLevel)
	switch {
	case f.logFile != "":
		if err := logger.SetOutputFile(f.logFile); err != nil {
			return err
		}
		defer logger.CloseLogFile()
	case !f.gui:
		// Log lines would tear the alt screen.
		logger.SetOutput(io.Discard)
	}

	opts, err := loadOptions(f)
	if err != nil {
		return err
	}
	if f.saveConfig != "" {
		if err := config.Save(f.saveConfig, opts); err != nil {
			return err
		}
		fmt.Printf("Saved settings to %s\n", f.saveConfig)
		return nil
	}
	cfg, err := config.New(opts, config.Display{Width: referenceWidth, Height: referenceHeight})
	if err != nil {
		return err
	}

	kind, path := f.source, f.file
	if kind == "" {
		choice, err := pick()
		if err != nil {
			return err
		}
		if choice.Cancelled {
			return nil
		}
		kind, path = choice.Kind, choice.Path
	}

	v := view.New(cfg, nil)
	v.SurfaceCreated()
	src, err := openSource(v, kind, path, f)
	if err != nil {
		v.Release()
		return err
	}
	logger.Infof("visualizing %s: %s", kind, src.Title())

	if f.gui {
		return glview.Run(v, src, f.width, f.height)
	}
	if _, err := tea.NewProgram(ui.New(v, src), tea.WithAltScreen()).Run(); err != nil {
		src.Close()
		v.Release()
		return err
	}
	return nil
}

// loadOptions layers the config file and then the flags over the defaults.
func loadOptions(f flags) (config.Options, error) {
	opts := config.DefaultOptions()
	if f.configPath != "" {
		var err error
		if opts, err = config.Load(f.configPath); err != nil {
			return opts, err
		}
	}
	if f.preset != "" {
		p, ok := findPreset(f.preset)
		if !ok {
			return opts, fmt.Errorf("unknown preset %q", f.preset)
		}
		opts.BackgroundColor = p.Background
		opts.LayerColors = append([]string(nil), p.Layers...)
	}
	if f.layers > 0 {
		opts.LayersCount = f.layers
	}
	if f.waves > 0 {
		opts.WavesCount = f.waves
	}
	if f.bubbles > 0 {
		opts.BubblesPerLayer = f.bubbles
	}
	return opts, nil
}

func findPreset(name string) (config.Preset, bool) {
	for _, p := range config.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return config.Preset{}, false
}

func pick() (ui.Choice, error) {
	picker := ui.NewPicker(".")
	if err := picker.Err(); err != nil {
		return ui.Choice{}, err
	}
	final, err := tea.NewProgram(picker, tea.WithAltScreen()).Run()
	if err != nil {
		return ui.Choice{}, err
	}
	pm, ok := final.(ui.PickerModel)
	if !ok {
		return ui.Choice{}, fmt.Errorf("unexpected model type from picker")
	}
	return pm.Result(), nil
}

func openSource(v *view.View, kind, path string, f flags) (source.Source, error) {
	switch kind {
	case "mic":
		m, err := source.NewMic(v, f.rate)
		if err != nil {
			return nil, fmt.Errorf("starting microphone: %w", err)
		}
		return m, nil
	case "speech":
		s, err := source.NewSpeech(v, f.rate, f.rmsMin, f.rmsMax)
		if err != nil {
			return nil, fmt.Errorf("starting speech capture: %w", err)
		}
		return s, nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("-source file needs a path (supported: %s)", media.SupportedExtsList())
		}
		paths, err := media.Resolve(path)
		if err != nil {
			return nil, err
		}
		file, err := source.NewFile(v, paths, rand.New(rand.NewSource(time.Now().UnixNano())))
		if err != nil {
			return nil, err
		}
		if f.shuffle {
			file.ToggleShuffle()
		}
		return file, nil
	}
	return nil, fmt.Errorf("unknown source %q (want mic, file or speech)", kind)
}
