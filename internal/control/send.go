package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Send delivers c to the UI listening on socketPath. A missing timestamp
// is filled in.
func Send(socketPath string, c Command) error {
	if c.TS.IsZero() {
		c.TS = time.Now().UTC()
	}
	if err := c.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", socketPath)
	if err != nil {
		return fmt.Errorf("resolve unix addr: %w", err)
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return fmt.Errorf("connect to %s (is `dock-tabs ui` running?): %w", socketPath, err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}
