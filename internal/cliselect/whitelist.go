// Package cliselect resolves which external AI coding CLI to run.
//
// Resolution walks a priority chain (project override, global preference,
// fallback chains, auto-detect) and only ever returns identifiers from a
// fixed whitelist. The whitelist is the injection-safety boundary: PRD and
// settings content can request a CLI but can never name an arbitrary
// executable that ends up in an exec call.
package cliselect

// supportedCLIs is the fixed whitelist of CLI identifiers, in canonical
// auto-detect order.
var supportedCLIs = []string{
	"claude",
	"aider",
	"codex",
	"cursor-agent",
	"copilot",
	"gemini",
	"qwen",
}

// IsSupported reports whether name is a whitelisted CLI identifier.
func IsSupported(name string) bool {
	for _, cli := range supportedCLIs {
		if cli == name {
			return true
		}
	}
	return false
}

// Supported returns a copy of the whitelist in canonical order.
func Supported() []string {
	out := make([]string, len(supportedCLIs))
	copy(out, supportedCLIs)
	return out
}
