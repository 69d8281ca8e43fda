package ir

// Version constants for the persisted layout and the tool.
const (
	// LayoutVersion identifies the row/column layout written by this module.
	LayoutVersion = "1"

	// ToolVersion is the widetriple version.
	ToolVersion = "0.1.0"
)
