package types

// Payloads published on the diagnostic bus under mood/...

// Source says who caused a colour change.
type Source string

const (
	SourceSerial Source = "serial"
	SourceButton Source = "button"
	SourceRandom Source = "random"
	SourceStore  Source = "store"
)

// ColorEvent is published on mood/color whenever the live duty triple changes.
type ColorEvent struct {
	Duty   Triple
	Source Source
}

// ModeEvent is published (retained) on mood/mode.
type ModeEvent struct {
	User bool
}

// StoreOp names a persistence operation.
type StoreOp string

const (
	StoreSave  StoreOp = "save"
	StoreErase StoreOp = "erase"
	StoreLoad  StoreOp = "load"
)

// StoreEvent is published on mood/store after each persistence operation.
type StoreEvent struct {
	Op   StoreOp
	Duty Triple
	Err  string `json:",omitempty"`
}

// AckKind identifies an acknowledgement blink sequence.
type AckKind string

const (
	AckSave  AckKind = "save"
	AckUser  AckKind = "user"
	AckReset AckKind = "reset"
)

// AckEvent is published on mood/ack before a blink sequence starts.
type AckEvent struct {
	Kind   AckKind
	Blinks int
}

// FaultEvent is published on mood/fault when the main loop gives up.
type FaultEvent struct {
	Code string
	Op   string
}
