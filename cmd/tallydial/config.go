package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tallydial/dial"
	"tallydial/haptic"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the tallydial daemon.
//
// Defaults and validation live here so the rest of the code can assume a well-formed
// config. The file is the primary configuration surface; flags override single values.
type Config struct {
	Dial    DialConfig    `yaml:"dial"`
	Haptic  HapticConfig  `yaml:"haptic"`
	Input   InputConfig   `yaml:"input"`
	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

type DialConfig struct {
	Checkpoints int `yaml:"checkpoints"`
	MajorStride int `yaml:"major_stride"`
}

// Haptic output drivers.
const (
	hapticDriverEvdev = "evdev"
	hapticDriverAudio = "audio"
	hapticDriverNone  = "none"
)

type HapticConfig struct {
	// Driver is "evdev", "audio" or "none".
	Driver string `yaml:"driver"`
	// Device is the force-feedback capable event device for the evdev driver.
	Device string `yaml:"device,omitempty"`

	WindowMS int `yaml:"window_ms"`
	HighRate int `yaml:"high_rate"`

	Pulses PulsesConfig `yaml:"pulses"`

	FallbackMS      int `yaml:"fallback_ms"`
	FallbackMajorMS int `yaml:"fallback_major_ms"`
}

type PulsesConfig struct {
	Light  PulseConfig `yaml:"light"`
	Medium PulseConfig `yaml:"medium"`
	Strong PulseConfig `yaml:"strong"`
	Major  PulseConfig `yaml:"major"`
}

type PulseConfig struct {
	DurationMS int `yaml:"duration_ms"`
	Strength   int `yaml:"strength"`
}

type InputConfig struct {
	// Devices are pointer devices (touchscreens, touchpads, mice) to read drags from.
	// Empty disables direct input; IPC and HTTP still work.
	Devices []string `yaml:"devices,omitempty"`

	// Surface is the input plane. Zero means: take it from the first absolute device.
	Surface SurfaceConfig `yaml:"surface"`
}

type SurfaceConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// Port 0 disables the HTTP server.
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func patternFile(p haptic.Pattern) PulseConfig {
	return PulseConfig{DurationMS: int(p.Duration / time.Millisecond), Strength: p.Strength}
}

func (p PulseConfig) pattern() haptic.Pattern {
	return haptic.Pattern{Duration: time.Duration(p.DurationMS) * time.Millisecond, Strength: p.Strength}
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	geom := dial.DefaultGeometry()
	hc := haptic.DefaultConfig()

	return Config{
		Dial: DialConfig{
			Checkpoints: geom.Checkpoints,
			MajorStride: geom.MajorStride,
		},
		Haptic: HapticConfig{
			Driver:   hapticDriverNone,
			WindowMS: int(hc.Window / time.Millisecond),
			HighRate: hc.HighRate,
			Pulses: PulsesConfig{
				Light:  patternFile(hc.Light),
				Medium: patternFile(hc.Medium),
				Strong: patternFile(hc.Strong),
				Major:  patternFile(hc.Major),
			},
			FallbackMS:      int(hc.Fallback / time.Millisecond),
			FallbackMajorMS: int(hc.FallbackMajor / time.Millisecond),
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values to apply on top of a loaded config.
// Each override is applied only when its pointer is non-nil, even if it holds a zero value.
type FlagOverrides struct {
	InputDevice *string

	HapticDriver *string
	HapticDevice *string

	Checkpoints *int

	IPCSocketPath *string
	HTTPPort      *int

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.HapticDriver != nil {
		cfg.Haptic.Driver = *o.HapticDriver
	}
	if o.HapticDevice != nil {
		cfg.Haptic.Device = *o.HapticDevice
	}
	if o.Checkpoints != nil {
		cfg.Dial.Checkpoints = *o.Checkpoints
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Dial
	if err := c.ToGeometry().Validate(); err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	// Haptic
	switch c.Haptic.Driver {
	case hapticDriverNone, hapticDriverAudio:
	case hapticDriverEvdev:
		if c.Haptic.Device == "" {
			return errors.New("haptic.device must be set when haptic.driver is \"evdev\"")
		}
	default:
		return fmt.Errorf("haptic.driver must be %q, %q or %q", hapticDriverEvdev, hapticDriverAudio, hapticDriverNone)
	}
	if err := c.ToHapticConfig().Validate(); err != nil {
		return fmt.Errorf("haptic: %w", err)
	}

	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.Surface.Width < 0 || c.Input.Surface.Height < 0 {
		return errors.New("input.surface width and height must be >= 0")
	}
	if (c.Input.Surface.Width == 0) != (c.Input.Surface.Height == 0) {
		return errors.New("input.surface width and height must both be set or both be 0")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ToGeometry converts the dial section.
func (c *Config) ToGeometry() dial.Geometry {
	return dial.Geometry{Checkpoints: c.Dial.Checkpoints, MajorStride: c.Dial.MajorStride}
}

// ToHapticConfig converts the haptic section.
func (c *Config) ToHapticConfig() haptic.Config {
	return haptic.Config{
		Window:   time.Duration(c.Haptic.WindowMS) * time.Millisecond,
		HighRate: c.Haptic.HighRate,

		Light:  c.Haptic.Pulses.Light.pattern(),
		Medium: c.Haptic.Pulses.Medium.pattern(),
		Strong: c.Haptic.Pulses.Strong.pattern(),
		Major:  c.Haptic.Pulses.Major.pattern(),

		Fallback:      time.Duration(c.Haptic.FallbackMS) * time.Millisecond,
		FallbackMajor: time.Duration(c.Haptic.FallbackMajorMS) * time.Millisecond,
	}
}

// Surface returns the configured input plane; zero when it should be probed.
func (c *Config) Surface() Surface {
	return Surface{Width: c.Input.Surface.Width, Height: c.Input.Surface.Height}
}

// ToReducerConfig builds the reducer configuration for the given input plane.
func (c *Config) ToReducerConfig(surface Surface) ReducerConfig {
	return ReducerConfig{
		Geometry: c.ToGeometry(),
		Center:   surface.Center(),
		Haptic:   c.ToHapticConfig(),
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
