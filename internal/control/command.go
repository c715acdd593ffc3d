// Package control lets other processes drive a running dock-tabs UI over
// a unix datagram socket: `dock-tabs open` and `dock-tabs close` send one
// JSON command per datagram.
package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/timvw/dock-tabs/internal/model"
)

const (
	ActionOpen     = "open"
	ActionClose    = "close"
	ActionCloseAll = "close_all"
	ActionActivate = "activate"
)

// Command is one control request.
type Command struct {
	Action    string    `json:"action"`
	Container string    `json:"container,omitempty"`
	Name      string    `json:"name,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Tab       string    `json:"tab,omitempty"`
	TS        time.Time `json:"ts"`
}

func (c Command) Validate() error {
	if c.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	switch c.Action {
	case ActionOpen:
		if strings.TrimSpace(c.Container) == "" {
			return fmt.Errorf("container is required for %s", c.Action)
		}
		if _, err := model.ParseKind(c.Kind); err != nil {
			return err
		}
	case ActionClose, ActionActivate:
		if strings.TrimSpace(c.Tab) == "" && strings.TrimSpace(c.Container) == "" {
			return fmt.Errorf("tab or container is required for %s", c.Action)
		}
		if c.Tab == "" {
			if _, err := model.ParseKind(c.Kind); err != nil {
				return err
			}
		}
	case ActionCloseAll:
	default:
		return fmt.Errorf("invalid action %q", c.Action)
	}
	return nil
}

// SessionKind returns the parsed kind. Validate must have succeeded.
func (c Command) SessionKind() model.Kind {
	k, _ := model.ParseKind(c.Kind)
	return k
}
