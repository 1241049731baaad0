// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxPreviewLines is the number of output lines shown per stage
	maxPreviewLines = 8
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(strings.ReplaceAll(line, "\t", "  "), boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunConfig outputs the inference settings a run will use.
func (p *Printer) PrintRunConfig(provider, model string, catalog *agents.Catalog, timeout time.Duration) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Provider: %s\n", provider))
	sb.WriteString(fmt.Sprintf("Model:    %s\n", model))
	sb.WriteString(fmt.Sprintf("Language: %s\n", catalog.Language()))
	if timeout > 0 {
		sb.WriteString(fmt.Sprintf("Timeout:  %s per stage\n", timeout))
	}
	sb.WriteString("\nStages:\n")
	for _, profile := range catalog.Profiles() {
		sb.WriteString(fmt.Sprintf("  • %-14s temperature %.1f\n", profile.Name, profile.Temperature))
	}

	p.printBox("RUN CONFIGURATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStageOutput outputs a preview of what one stage produced.
func (p *Printer) PrintStageOutput(stage agents.Stage, output string, elapsed time.Duration) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Duration: %s   Length: %d chars\n\n", elapsed.Round(time.Millisecond), utf8.RuneCountInString(output)))

	output = strings.TrimSpace(output)
	if output == "" {
		sb.WriteString("(empty output)")
	} else {
		lines := strings.Split(output, "\n")
		count := min(len(lines), maxPreviewLines)
		sb.WriteString(strings.Join(lines[:count], "\n"))
		if len(lines) > maxPreviewLines {
			sb.WriteString(fmt.Sprintf("\n... and %d more lines", len(lines)-maxPreviewLines))
		}
	}

	title := fmt.Sprintf("%s (%s)", strings.ToUpper(stage.String()), stage.Key())
	p.printBox(title, sb.String())
}

// PrintResultSummary outputs the size of each entry of the result mapping.
func (p *Printer) PrintResultSummary(result *pipeline.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	if result.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run:   %s\n", result.RunID))
	}
	if result.Model != "" {
		sb.WriteString(fmt.Sprintf("Model: %s\n", result.Model))
	}
	sb.WriteString("\n")
	for _, stage := range agents.Stages() {
		sb.WriteString(fmt.Sprintf("  • %-20s %6d chars\n", stage.Key(), utf8.RuneCountInString(result.Get(stage))))
	}

	p.printBox("RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFailure outputs the stage that failed and why.
func (p *Printer) PrintFailure(err error) {
	if err == nil {
		return
	}

	title := "❌ RUN FAILED"
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		title = fmt.Sprintf("❌ %s STAGE FAILED", strings.ToUpper(stageErr.Stage.String()))
	}

	// Wrap the error text to the box width
	var lines []string
	for _, word := range strings.Fields(err.Error()) {
		n := len(lines)
		if n > 0 && utf8.RuneCountInString(lines[n-1])+1+utf8.RuneCountInString(word) <= boxWidth-4 {
			lines[n-1] += " " + word
			continue
		}
		lines = append(lines, word)
	}

	p.printBox(title, strings.Join(lines, "\n"))
}
