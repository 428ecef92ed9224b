package ir

// Version constants for the wire format and executor.
const (
	// WireVersion is the instruction wire format version.
	WireVersion = "1"

	// EngineVersion is the punchcard executor version.
	EngineVersion = "0.1.0"
)
