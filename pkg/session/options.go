package session

// TimeoutConfig holds the channel timeouts of a session.
type TimeoutConfig struct {
	ReadTimeoutMs  uint32
	WriteTimeoutMs uint32
}

// BasicOptions is the minimum configuration of a diagnostic session.
type BasicOptions struct {
	// SendID is the CAN id the ECU listens on
	SendID uint32
	// RecvID is the CAN id the ECU answers with
	RecvID uint32
	// Timeouts for the request and response legs
	Timeouts TimeoutConfig
}

// AdvancedOptions enables tester present keepalives and global addressing.
type AdvancedOptions struct {
	// GlobalTpID is an optional functional address for tester present
	// messages. 0 means not in use.
	GlobalTpID uint32
	// TesterPresentIntervalMs is the minimum interval between keepalives
	TesterPresentIntervalMs uint32
	// TesterPresentRequireResponse makes the worker poll for a response to
	// each keepalive
	TesterPresentRequireResponse bool
	// GlobalSessionControl routes session change requests to GlobalTpID.
	// Ignored when GlobalTpID is 0.
	//
	// This can put the entire vehicle network into a diagnostic session,
	// use with care.
	GlobalSessionControl bool
	// TpExtID is an optional extended ISO-TP address, used for tester present
	// messages and for session change requests sent to GlobalTpID under
	// GlobalSessionControl. Some ECUs require this together with a global tp id.
	TpExtID *uint8
	// CommandCooldownMs is the wait before retransmitting after the ECU
	// asked for a repeat of the request. It is not an inter request delay.
	CommandCooldownMs uint32
}

// DefaultTimeouts covers most ECUs on a 500kbit bus.
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{ReadTimeoutMs: 2500, WriteTimeoutMs: 2500}
}
