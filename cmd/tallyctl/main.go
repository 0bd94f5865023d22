// Package main provides tallyctl, the command-line client for the tallydial daemon.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const (
	defaultSocketPath = "/tmp/tallydial.sock"
	defaultHTTPAddr   = "127.0.0.1:3002"
	defaultSurface    = 1000.0
)

var (
	socketPath string
	httpAddr   string

	dragStartDeg float64
	dragSweepDeg float64
	dragSteps    int
	dragRadius   float64
	dragCenterX  float64
	dragCenterY  float64
	dragInterval time.Duration
	dragCancel   bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tallyctl",
		Short:         "Control and observe the tallydial daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath, "daemon IPC socket path")
	rootCmd.PersistentFlags().StringVar(&httpAddr, "http", defaultHTTPAddr, "daemon HTTP address (host:port)")

	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newDragCmd())
	rootCmd.AddCommand(newStateCmd())
	rootCmd.AddCommand(newWatchCmd())

	return rootCmd
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Zero the counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := dialIPC(socketPath)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.send("reset_count", nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newDragCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drag",
		Short: "Send a synthetic circular drag",
		Long: "Sends a drag_start at --start-deg followed by --steps drag_move samples evenly spread\n" +
			"over --sweep-deg (positive is clockwise on screen), then drag_end.",
		Args: cobra.NoArgs,
		RunE: runDragCmd,
	}

	cmd.Flags().Float64Var(&dragStartDeg, "start-deg", 0, "start angle in degrees")
	cmd.Flags().Float64Var(&dragSweepDeg, "sweep-deg", 360, "total sweep in degrees")
	cmd.Flags().IntVar(&dragSteps, "steps", 60, "number of move samples")
	cmd.Flags().Float64Var(&dragRadius, "radius", defaultSurface/4, "circle radius in plane units")
	cmd.Flags().Float64Var(&dragCenterX, "center-x", defaultSurface/2, "dial center x in plane units")
	cmd.Flags().Float64Var(&dragCenterY, "center-y", defaultSurface/2, "dial center y in plane units")
	cmd.Flags().DurationVar(&dragInterval, "interval", 20*time.Millisecond, "delay between samples")
	cmd.Flags().BoolVar(&dragCancel, "cancel", false, "finish with drag_cancel instead of drag_end")

	return cmd
}

// point is a position on the daemon's input plane.
type point struct{ X, Y float64 }

// dragPath returns steps+1 points on a circle: the start and one per step.
func dragPath(startDeg, sweepDeg float64, steps int, radius float64, center point) []point {
	if steps < 1 {
		steps = 1
	}
	pts := make([]point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		deg := startDeg + sweepDeg*float64(i)/float64(steps)
		rad := deg * math.Pi / 180
		pts = append(pts, point{
			X: center.X + radius*math.Cos(rad),
			Y: center.Y + radius*math.Sin(rad),
		})
	}
	return pts
}

func runDragCmd(cmd *cobra.Command, _ []string) error {
	if dragSteps < 1 {
		return fmt.Errorf("--steps must be >= 1")
	}
	if dragRadius <= 0 {
		return fmt.Errorf("--radius must be > 0")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := dialIPC(socketPath)
	if err != nil {
		return err
	}
	defer c.Close()

	pts := dragPath(dragStartDeg, dragSweepDeg, dragSteps, dragRadius, point{dragCenterX, dragCenterY})

	id := uuid.NewString()
	if err := c.send("drag_start", dragStart{X: pts[0].X, Y: pts[0].Y, GestureID: id}); err != nil {
		return err
	}

	for _, p := range pts[1:] {
		select {
		case <-ctx.Done():
			// Interrupted: leave the daemon without a dangling gesture.
			return c.send("drag_cancel", nil)
		case <-time.After(dragInterval):
		}
		if err := c.send("drag_move", dragMove{X: p.X, Y: p.Y}); err != nil {
			return err
		}
	}

	end := "drag_end"
	if dragCancel {
		end = "drag_cancel"
	}
	if err := c.send(end, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "gesture %s: %d samples\n", id, len(pts))
	return nil
}

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the daemon's current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return fetchState(cmd.Context(), httpAddr, cmd.OutOrStdout())
		},
	}
}

// fetchState GETs /api/state and writes it indented to w.
func fetchState(ctx context.Context, addr string, w io.Writer) error {
	u := url.URL{Scheme: "http", Host: addr, Path: "/api/state"}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get state: %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(w)
	return err
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, httpAddr, cmd.OutOrStdout())
		},
	}
}

// watch prints one line per WS frame: "<ts> <type> <data>".
func watch(ctx context.Context, addr string, w io.Writer) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.String(), err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var env struct {
			Type string          `json:"type"`
			Ts   time.Time       `json:"ts"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &env); err != nil {
			fmt.Fprintf(w, "%s\n", msg)
			continue
		}
		fmt.Fprintf(w, "%s %-13s %s\n", env.Ts.Local().Format("15:04:05.000"), env.Type, env.Data)
	}
}
