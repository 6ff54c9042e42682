package gpio

// LatchState is the level a latched relay was left at.
type LatchState string

const (
	LatchOn      LatchState = "on"
	LatchOff     LatchState = "off"
	LatchUnknown LatchState = "unknown" // line is not configured as an output
)

// LatchLine is a relay whose level outlives the process that set it, such
// as the speaker amplifier supply.
type LatchLine interface {
	// Set drives the relay on or off, configuring the line as an output.
	Set(on bool) error

	// State reads the level back. Lines that are not outputs report LatchUnknown.
	State() (LatchState, error)

	// Close releases the line without touching its level.
	Close() error
}
