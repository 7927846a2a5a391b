package output

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	// Package state colors
	UpToDate = color.New(color.FgGreen)
	BuildDue = color.New(color.FgCyan)
	Mismatch = color.New(color.FgYellow)
	Missing  = color.New(color.FgRed)
	Built    = color.New(color.FgGreen, color.Bold)
	Failed   = color.New(color.FgRed, color.Bold)

	// Message colors
	Success = color.New(color.FgGreen)
	Warning = color.New(color.FgYellow)
	Error   = color.New(color.FgRed)
	Info    = color.New(color.FgCyan)
	Dim     = color.New(color.Faint)

	// Structural colors
	Header  = color.New(color.FgWhite, color.Bold)
	Package = color.New(color.FgBlue, color.Bold)
)

// NoColor disables color output
func NoColor() {
	color.NoColor = true
}

// ForceColor enables color output even when not a TTY
func ForceColor() {
	color.NoColor = false
}

// IsTerminal returns true if stdout is a terminal
func IsTerminal() bool {
	return IsTerminalFile(os.Stdout)
}

// IsTerminalFile returns true if f is attached to a terminal
func IsTerminalFile(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// StateColor returns the color for a package evaluation state
func StateColor(state string) *color.Color {
	switch state {
	case "up to date":
		return UpToDate
	case "build needed":
		return BuildDue
	case "maintainer mismatch":
		return Mismatch
	case "not found":
		return Missing
	case "built":
		return Built
	case "failed":
		return Failed
	default:
		return color.New(color.Reset)
	}
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Success.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Error.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Warning.Printf("⚠ "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Info.Printf("→ "+format+"\n", args...)
}

// FormatState formats an evaluation state with appropriate color
func FormatState(state string) string {
	c := StateColor(state)
	return c.Sprintf("[%s]", state)
}

// FormatPackage formats a package name with color
func FormatPackage(pkg string) string {
	return Package.Sprint(pkg)
}
