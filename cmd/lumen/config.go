package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the viewer settings. It is read from an optional TOML file;
// command line flags override the file.
type Config struct {
	FPS        int     `toml:"fps"`
	Background string  `toml:"background"`
	Log        string  `toml:"log"`
	Distance   float64 `toml:"distance"`
	Ambient    float64 `toml:"ambient"`
	Light      float64 `toml:"light"`
	Lights     int     `toml:"point_lights"`
	Cull       bool    `toml:"cull"`
	Offscreen  bool    `toml:"offscreen"`
}

// DefaultConfig returns the settings used when neither a file nor a flag
// sets a value.
func DefaultConfig() Config {
	return Config{
		FPS:        30,
		Background: "30,30,40",
		Distance:   4,
		Ambient:    0.35,
		Light:      6,
		Lights:     1,
		Cull:       true,
		Offscreen:  true,
	}
}

// LoadConfig decodes a TOML file over cfg. Keys missing from the file keep
// their value in cfg.
func LoadConfig(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// BackgroundColor parses the "R,G,B" background color.
func (c Config) BackgroundColor() (r, g, b uint8, err error) {
	if _, err := fmt.Sscanf(c.Background, "%d,%d,%d", &r, &g, &b); err != nil {
		return 0, 0, 0, fmt.Errorf("background %q: %w", c.Background, err)
	}
	return r, g, b, nil
}

var errUsage = errors.New("usage")

// parseArgs parses the command line into a config and the model path. The
// config file named by -config is applied first, then every flag that was
// set explicitly.
func parseArgs(args []string, stderr io.Writer) (Config, string, error) {
	def := DefaultConfig()
	fs := flag.NewFlagSet("lumen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to a TOML config file")
	fps := fs.Int("fps", def.FPS, "Target FPS")
	bg := fs.String("bg", def.Background, "Background color (R,G,B)")
	logPath := fs.String("log", def.Log, "Write debug logs to this file")
	distance := fs.Float64("distance", def.Distance, "Initial camera distance")
	ambient := fs.Float64("ambient", def.Ambient, "Ambient light intensity")
	light := fs.Float64("light", def.Light, "Point light intensity (0 disables it)")
	lights := fs.Int("point-lights", def.Lights, "Initial point light block capacity")
	cull := fs.Bool("cull", def.Cull, "Frustum culling")
	offscreen := fs.Bool("offscreen", def.Offscreen, "Render the opaque pass offscreen")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "lumen - Terminal glTF Viewer\n\n")
		fmt.Fprintf(stderr, "Usage: lumen [options] <model.glb>\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nControls:\n")
		fmt.Fprintf(stderr, "  Mouse drag  - Orbit\n")
		fmt.Fprintf(stderr, "  Scroll      - Zoom in/out\n")
		fmt.Fprintf(stderr, "  W/S/A/D     - Pitch and yaw\n")
		fmt.Fprintf(stderr, "  +/-         - Zoom\n")
		fmt.Fprintf(stderr, "  Space       - Random spin\n")
		fmt.Fprintf(stderr, "  R           - Reset view\n")
		fmt.Fprintf(stderr, "  Esc         - Quit\n")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return Config{}, "", errUsage
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath, cfg); err != nil {
			return Config{}, "", err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps":
			cfg.FPS = *fps
		case "bg":
			cfg.Background = *bg
		case "log":
			cfg.Log = *logPath
		case "distance":
			cfg.Distance = *distance
		case "ambient":
			cfg.Ambient = *ambient
		case "light":
			cfg.Light = *light
		case "point-lights":
			cfg.Lights = *lights
		case "cull":
			cfg.Cull = *cull
		case "offscreen":
			cfg.Offscreen = *offscreen
		}
	})
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	return cfg, fs.Arg(0), nil
}
