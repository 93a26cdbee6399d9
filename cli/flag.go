// Package cli provides functionality for handling command-line flags.

package cli

// Flag represents a command-line flag belonging to a Command.
type Flag struct {
	Name    string   // Name of the flag.
	Usage   string   // Usage description of the flag.
	Aliases []string // Aliases for the flag.
	Default string   // Default value of the flag.
}
