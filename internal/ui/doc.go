// Package ui renders myssh's human-readable CLI output.
//
// Everything here returns strings styled with Lip Gloss; the CLI decides
// where they go. Machine output (--json) bypasses this package entirely.
//
//	Table          - column-aligned table with a header rule
//	UsageBar       - [████░░░░]  42% with threshold colors
//	Sparkline      - ▁▂▅█ history for monitor --watch
//	RenderEntries  - directory listings
//	RenderSnapshot - monitor samples
//	RenderSessions - live session registry
//	RenderBatch    - per-path results of delete and chmod
//
// # Colors
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - success, usage below 60%
//	ColorWarning   (yellow) - reconnecting, usage from 60%
//	ColorError     (red)    - failures, usage from 80%
//	ColorInfo      (cyan)   - symlinks
//	ColorSecondary (blue)   - directories
//	ColorMuted     (gray)   - secondary text
//
// Use DisableColors() for monochrome output (--no-color, non-terminals).
package ui
