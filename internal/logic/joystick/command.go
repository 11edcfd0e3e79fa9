package joystick

import (
	"fmt"
	"time"
)

// Action is the kind of motion a sample asks for.
type Action int

const (
	Stop Action = iota
	Forward
	Backward
)

func (a Action) String() string {
	switch a {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "stop"
	}
}

// MarshalText lets Action appear as a word in JSON status.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the words written by MarshalText.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stop":
		*a = Stop
	case "forward":
		*a = Forward
	case "backward":
		*a = Backward
	default:
		return fmt.Errorf("joystick: unknown action %q", text)
	}
	return nil
}

// Command is Stop, Forward{DelayMs} or Backward{DelayMs}. DelayMs is zero
// for Stop.
type Command struct {
	Action  Action `json:"action"`
	DelayMs int    `json:"delay_ms,omitempty"`
}

// Delay returns the requested inter-step delay.
func (c Command) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Moving reports whether the command asks for steps.
func (c Command) Moving() bool {
	return c.Action != Stop
}

func (c Command) String() string {
	if c.Action == Stop {
		return "Stop"
	}
	return fmt.Sprintf("%s(%dms)", c.Action, c.DelayMs)
}
