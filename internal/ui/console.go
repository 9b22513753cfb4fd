// Package ui renders transfer progress on the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"sf/internal/transport"
	"sf/pkg/utils"
)

// ConsoleUI draws one progress bar per file and a summary at the end. It
// implements transport.ProgressReporter.
type ConsoleUI struct {
	out       io.Writer
	operation string // "Sending" or "Receiving"
	bar       *progressbar.ProgressBar
}

var _ transport.ProgressReporter = (*ConsoleUI)(nil)

// NewConsoleUI creates a console UI writing to stderr
func NewConsoleUI(operation string) *ConsoleUI {
	return NewConsoleUIWriter(operation, os.Stderr)
}

// NewConsoleUIWriter creates a console UI writing to out
func NewConsoleUIWriter(operation string, out io.Writer) *ConsoleUI {
	return &ConsoleUI{out: out, operation: operation}
}

// ShowMessage displays a message to the user
func (c *ConsoleUI) ShowMessage(message string) {
	fmt.Fprintln(c.out, message)
}

// StartFile starts a progress bar for the next file
func (c *ConsoleUI) StartFile(index, total int, path string, size uint64) {
	c.FinishFile()

	description := fmt.Sprintf("[%d/%d] %s %s", index, total, c.operation, path)
	if size == 0 {
		// nothing to draw a bar for
		fmt.Fprintf(c.out, "%s (empty)\n", description)
		return
	}

	c.bar = progressbar.NewOptions64(int64(size),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

// Advance moves the current bar forward by n bytes
func (c *ConsoleUI) Advance(n int) {
	if c.bar == nil {
		return
	}
	_ = c.bar.Add(n)
}

// FinishFile completes the current bar, if any
func (c *ConsoleUI) FinishFile() {
	if c.bar == nil {
		return
	}
	_ = c.bar.Finish()
	c.bar = nil
}

// ShowSummary displays a summary of the completed transfer
func (c *ConsoleUI) ShowSummary(s *transport.Summary) {
	c.FinishFile()
	fmt.Fprintf(c.out, "=============================================\n")
	fmt.Fprintf(c.out, "Transfer completed successfully!\n")
	fmt.Fprintf(c.out, "+ Files: %d\n", s.Files)
	fmt.Fprintf(c.out, "+ Total bytes: %s\n", utils.FormatSize(s.Bytes))
	fmt.Fprintf(c.out, "+ Transfer time: %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(c.out, "+ Average throughput: %s\n", utils.FormatRate(s.Throughput()))
	fmt.Fprintf(c.out, "=============================================\n")
}
