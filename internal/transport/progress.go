package transport

import "time"

// ProgressReporter is notified as files move over the stream. Calls happen
// on the transferring goroutine, in order, so implementations should not
// block.
type ProgressReporter interface {
	// StartFile announces file index (1-based) of total
	StartFile(index, total int, path string, size uint64)
	// Advance reports n more bytes of the current file
	Advance(n int)
	// FinishFile marks the current file complete
	FinishFile()
}

type nopReporter struct{}

func (nopReporter) StartFile(int, int, string, uint64) {}
func (nopReporter) Advance(int)                        {}
func (nopReporter) FinishFile()                        {}

// Summary describes a completed transfer
type Summary struct {
	Files    int
	Bytes    uint64
	Duration time.Duration
}

// Throughput returns the average rate in bytes per second
func (s Summary) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Duration.Seconds()
}
