package outputs

// Kind enumerates the protocol notifications the assembler understands.
type Kind int

const (
	// Announced registers a new output. Handle may be nil.
	Announced Kind = iota
	// NameReceived carries the connector name in Value.
	NameReceived
	// DescriptionReceived carries the human readable description in Value.
	DescriptionReceived
	// SerialReceived carries the serial number in Value.
	SerialReceived
	// Done marks the output description as complete.
	Done
	// Removed signals the output disappeared.
	Removed
)

func (k Kind) String() string {
	switch k {
	case Announced:
		return "announced"
	case NameReceived:
		return "name"
	case DescriptionReceived:
		return "description"
	case SerialReceived:
		return "serial"
	case Done:
		return "done"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Notification is a decoded protocol event about a single output.
type Notification struct {
	Kind   Kind
	ID     uint32
	Value  string
	Handle Handle
}
