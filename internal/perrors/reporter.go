package perrors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level mirrors kanso/internal/errors' ErrorLevel — the same
// error/warning/note vocabulary, applied to disassembly diagnostics
// instead of compiler diagnostics.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)

// Diagnostic is the address-oriented analogue of kanso's CompilerError:
// a structured, leveled message anchored to a byte address and region
// instead of a source line/column, since there is no source text here.
type Diagnostic struct {
	Level   Level
	Code    string // e.g. "Failed", "Divergence"
	Message string
	Region  string
	Address uint64
	Notes   []string
}

// FromDisassemblyFailure builds a warning Diagnostic for a Failed
// vertex encountered by the driver (internal/program).
func FromDisassemblyFailure(region string, err DisassemblyFailure) Diagnostic {
	return Diagnostic{
		Level:   LevelWarning,
		Code:    "Failed",
		Message: err.Reason,
		Region:  region,
		Address: err.Address,
	}
}

// FromAnalysisDivergence builds a warning Diagnostic for a function
// whose abstract interpretation hit the iteration cap.
func FromAnalysisDivergence(region string, err AnalysisDivergence) Diagnostic {
	return Diagnostic{
		Level:   LevelWarning,
		Code:    "Divergence",
		Message: fmt.Sprintf("did not converge after %d iterations", err.Iterations),
		Region:  region,
		Notes:   []string{fmt.Sprintf("function uuid %s", err.Function)},
	}
}

// Reporter formats Diagnostics the way kanso-cli formats CompilerErrors:
// a colored "level[code]: message" header followed by a "--> region:address"
// location line and any notes.
type Reporter struct{}

func NewReporter() *Reporter { return &Reporter{} }

// Format renders d as a single multi-line, colored string.
func (r *Reporter) Format(d Diagnostic) string {
	var b strings.Builder

	levelColor := r.levelColor(d.Level)
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		b.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message))
	} else {
		b.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))
	}

	b.WriteString(fmt.Sprintf("  %s %s:%#x\n", dim("-->"), d.Region, d.Address))

	noteColor := color.New(color.FgBlue).SprintFunc()
	for _, n := range d.Notes {
		b.WriteString(fmt.Sprintf("  %s %s\n", noteColor("note:"), n))
	}

	return b.String()
}

func (r *Reporter) levelColor(level Level) func(...any) string {
	switch level {
	case LevelError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case LevelNote:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}
