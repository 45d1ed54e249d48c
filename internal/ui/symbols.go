package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess   = "✓" // Operation succeeded
	SymbolFail      = "✗" // Operation failed
	SymbolPending   = "○" // Disconnected
	SymbolProgress  = "◐" // Connecting or reconnecting
	SymbolConnected = "●" // Live session
)
