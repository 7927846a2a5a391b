package output

import (
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestColorOutputMatchesStateType(t *testing.T) {
	// Ensure colors are enabled for this test
	ForceColor()
	defer NoColor()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// Map of evaluation states to their expected ANSI color codes
	stateColorCodes := map[string]string{
		"up to date":          "\x1b[32m", // Green
		"build needed":        "\x1b[36m", // Cyan
		"maintainer mismatch": "\x1b[33m", // Yellow
		"not found":           "\x1b[31m", // Red
	}

	stateGen := gen.OneConstOf("up to date", "build needed", "maintainer mismatch", "not found")

	properties.Property("FormatState contains correct ANSI code for state", prop.ForAll(
		func(state string) bool {
			formatted := FormatState(state)
			expectedCode := stateColorCodes[state]
			return strings.Contains(formatted, expectedCode)
		},
		stateGen,
	))

	properties.Property("StateColor returns non-nil color for known state", prop.ForAll(
		func(state string) bool {
			c := StateColor(state)
			return c != nil
		},
		stateGen,
	))

	properties.Property("FormatState output contains the state text", prop.ForAll(
		func(state string) bool {
			formatted := FormatState(state)
			return strings.Contains(formatted, state)
		},
		stateGen,
	))

	properties.TestingRun(t)
}

func TestIsTerminalFileFalseForRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	defer f.Close()

	if IsTerminalFile(f) {
		t.Error("regular file should not be a terminal")
	}
}

func TestNoColorFlagDisablesANSICodes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	stateGen := gen.OneConstOf("up to date", "build needed", "maintainer mismatch", "not found", "built", "failed")

	stringGen := gen.AnyString()

	properties.Property("FormatState contains no ANSI codes when NoColor is set", prop.ForAll(
		func(state string) bool {
			NoColor()
			defer ForceColor()

			formatted := FormatState(state)
			// ANSI escape sequences start with \x1b[ or \033[
			return !strings.Contains(formatted, "\x1b[") && !strings.Contains(formatted, "\033[")
		},
		stateGen,
	))

	properties.Property("colored Sprintf contains no ANSI codes when NoColor is set", prop.ForAll(
		func(text string) bool {
			NoColor()
			defer ForceColor()

			colors := []*color.Color{UpToDate, BuildDue, Mismatch, Missing, Success, Error, Info, Warning}
			for _, c := range colors {
				result := c.Sprintf("%s", text)
				if strings.Contains(result, "\x1b[") || strings.Contains(result, "\033[") {
					return false
				}
			}
			return true
		},
		stringGen,
	))

	properties.Property("FormatPackage contains no ANSI codes when NoColor is set", prop.ForAll(
		func(pkg string) bool {
			NoColor()
			defer ForceColor()

			formatted := FormatPackage(pkg)
			return !strings.Contains(formatted, "\x1b[") && !strings.Contains(formatted, "\033[")
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
