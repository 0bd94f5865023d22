package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tallydial/dial"
	"tallydial/haptic"
	"tallydial/haptic/audio"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("tallydial v%s\n", version)
	fmt.Println("Rotary gesture counter daemon with adaptive haptic feedback")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  tallydial [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Counts checkpoint crossings of circular drag gestures made on a touch")
	fmt.Println("  surface or pointer device, and pulses a haptic actuator for each crossing.")
	fmt.Println("  Pulses get lighter when crossings come fast and stronger on every major")
	fmt.Println("  checkpoint. The count is served over a Unix socket, HTTP and WebSocket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Pointer input event device, e.g. /dev/input/event3 (replaces input.devices)")
	fmt.Println()
	fmt.Println("  -haptic-driver string")
	fmt.Println("        Haptic output: evdev, audio or none (default \"none\")")
	fmt.Println()
	fmt.Println("  -haptic-device string")
	fmt.Println("        Force-feedback event device for the evdev driver")
	fmt.Println()
	fmt.Println("  -checkpoints int")
	fmt.Println("        Number of checkpoints on the circle (default 30)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        HTTP/WebSocket listener port, 0 disables (default %d)\n", defaultHTTPPort)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Touchscreen input with force-feedback on a gamepad")
	fmt.Println("  tallydial -input-device /dev/input/event3 -haptic-driver evdev -haptic-device /dev/input/event7")
	fmt.Println()
	fmt.Println("  # No input device; drive it from tallyctl and hear the clicks")
	fmt.Println("  tallydial -haptic-driver audio")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println("  - A missing or unusable haptic device never stops counting")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		inputDevice  = flag.String("input-device", "", "Pointer input event device")
		hapticDriver = flag.String("haptic-driver", hapticDriverNone, "Haptic output: evdev, audio or none")
		hapticDevice = flag.String("haptic-device", "", "Force-feedback event device for the evdev driver")
		checkpoints  = flag.Int("checkpoints", dial.DefaultCheckpoints, "Number of checkpoints on the circle")
		ipcSocket    = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		httpPort     = flag.Int("http-port", defaultHTTPPort, "HTTP/WebSocket listener port (0 disables)")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		_            = flag.Bool("version", false, "Print version and exit")
		_            = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input-device":
			ov.InputDevice = inputDevice
		case "haptic-driver":
			ov.HapticDriver = hapticDriver
		case "haptic-device":
			ov.HapticDevice = hapticDevice
		case "checkpoints":
			ov.Checkpoints = checkpoints
		case "ipc-socket":
			ov.IPCSocketPath = ipcSocket
		case "http-port":
			ov.HTTPPort = httpPort
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("tallydial stopped", "error", err)
		os.Exit(1)
	}
}

// run wires every component to one context and blocks until SIGINT/SIGTERM or a fatal error.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port, closePort := openHapticPort(cfg, logger)
	defer closePort()

	devs := openInputDevices(cfg.Input.Devices, logger)
	defer func() {
		for _, d := range devs {
			_ = d.f.Close()
		}
	}()

	surface := cfg.Surface()
	if surface.IsZero() {
		surface = surfaceFromDevices(devs)
	}
	rcfg := cfg.ToReducerConfig(surface)

	logger.Debug("starting tallydial", "version", version)
	logger.Debug("configuration",
		"checkpoints", cfg.Dial.Checkpoints,
		"major_stride", cfg.Dial.MajorStride,
		"haptic_driver", cfg.Haptic.Driver,
		"haptic_window_ms", cfg.Haptic.WindowMS,
		"haptic_high_rate", cfg.Haptic.HighRate,
		"surface_width", surface.Width,
		"surface_height", surface.Height,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	g, gctx := errgroup.WithContext(ctx)

	events := make(chan Event, eventBufferSize)

	var broadcasts chan StateBroadcast
	if cfg.HTTP.Port > 0 {
		broadcasts = make(chan StateBroadcast, broadcastBufferSize)
		ws := NewServer(logger, events, ServerConfig{})

		g.Go(func() error {
			ws.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, ws.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, newRouter(ws, events, logger), logger)
		})
	}

	g.Go(func() error {
		runDaemon(gctx, events, port, rcfg, &DaemonState{}, broadcasts, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger)
	})

	if len(devs) > 0 {
		g.Go(func() error {
			if err := runInput(gctx, devs, surface, events, logger); err != nil && gctx.Err() == nil {
				// Not fatal: IPC and HTTP still drive the counter.
				logger.Error("input reader stopped", "error", err)
			}
			return nil
		})
	}

	logger.Info("listening",
		"input_devices", len(devs),
		"haptic", port.Capabilities().Present,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	err := g.Wait()
	logger.Info("shutting down")
	return err
}

// openHapticPort opens the configured output and degrades it once for its capabilities.
// Failures fall back to no haptics with a warning. The returned func releases the device.
func openHapticPort(cfg Config, logger *slog.Logger) (haptic.Port, func()) {
	hcfg := cfg.ToHapticConfig()
	noop := func() {}

	switch cfg.Haptic.Driver {
	case hapticDriverEvdev:
		dev, err := haptic.OpenEvdev(ExpandPath(cfg.Haptic.Device), logger)
		if err != nil {
			logger.Warn("haptic device unavailable, continuing without haptics", "device", cfg.Haptic.Device, "error", err)
			return haptic.Nop{}, noop
		}
		caps := dev.Capabilities()
		logger.Info("haptic device opened", "device", cfg.Haptic.Device, "present", caps.Present, "amplitude", caps.Amplitude)
		return haptic.Degrade(dev, hcfg), func() { _ = dev.Close() }

	case hapticDriverAudio:
		a, err := audio.Open()
		if err != nil {
			logger.Warn("audio output unavailable, continuing without haptics", "error", err)
			return haptic.Nop{}, noop
		}
		logger.Info("audio click output opened")
		return haptic.Degrade(a, hcfg), func() { _ = a.Close() }

	default:
		return haptic.Nop{}, noop
	}
}
