package main

import (
	"encoding/json"
	"fmt"
	"net"
)

// Event payloads (duplicated from the daemon package for a standalone binary)

type dragStart struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	GestureID string  `json:"gesture_id,omitempty"`
}

type dragMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// envelope wraps events for JSON
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ipcResponse represents the daemon's response
type ipcResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ipcConn is one open connection to the daemon socket. Every line sent gets one response.
type ipcConn struct {
	conn net.Conn
	dec  *json.Decoder
}

func dialIPC(socketPath string) (*ipcConn, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	return &ipcConn{conn: conn, dec: json.NewDecoder(conn)}, nil
}

func (c *ipcConn) Close() error { return c.conn.Close() }

// send writes one event of the given type and waits for the daemon to accept it.
// payload may be nil for events without data.
func (c *ipcConn) send(typ string, payload any) error {
	env := envelope{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = data
	}
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}

	var resp ipcResponse
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}
