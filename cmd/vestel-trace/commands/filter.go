package commands

import (
	"fmt"
	"io"

	"github.com/vesteltv/vestel-go/pkg/trace"
)

// RunFilter copies the events matching filter to a new trace file and
// returns how many were written.
func RunFilter(path, output string, filter trace.Filter) (int, error) {
	reader, err := trace.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	logger, err := trace.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
}
