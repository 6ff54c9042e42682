// Package door drives a sectional garage door through three momentary
// switches (HALT, OPEN, CLOSE) and a "fully closed" contact.
//
// The controller never stores a motion state. It only knows whether the door
// is closed or not, and treats "not closed" as "possibly moving": any
// movement command issued while the door is not closed is preceded by a stop
// pulse and a settle pause, so the motor is never reversed while running.
package door

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSettle is how long a relay is held per pulse, and the pause between
// an interlock stop and the following movement pulse.
const DefaultSettle = 500 * time.Millisecond

// Command is a door actuation request.
type Command string

const (
	CommandOpen  Command = "OPEN"
	CommandStop  Command = "STOP"
	CommandClose Command = "CLOSE"
)

// State is the door position as reported by the closed contact.
type State string

const (
	StateClosed State = "CLOSED"
	StateOpen   State = "OPEN"
)

// ErrUnknownCommand is returned for anything other than OPEN, STOP or CLOSE.
var ErrUnknownCommand = errors.New("unknown door command")

// ParseCommand matches the exact upper-case wire form of a command.
func ParseCommand(s string) (Command, error) {
	switch c := Command(s); c {
	case CommandOpen, CommandStop, CommandClose:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// ParseCLICommand matches the lower-case command line form (open, stop, close).
func ParseCLICommand(s string) (Command, error) {
	switch s {
	case "open":
		return CommandOpen, nil
	case "stop":
		return CommandStop, nil
	case "close":
		return CommandClose, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

func stateFor(closed bool) State {
	if closed {
		return StateClosed
	}
	return StateOpen
}
