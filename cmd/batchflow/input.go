package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"batchflow/internal/batch"
	"batchflow/internal/config"
)

// readRunInput decodes a run input from path, or from stdin when path is
// "-" or empty.
func readRunInput(path string, stdin io.Reader) (batch.RunInput, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return batch.DecodeInput(stdin)
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return batch.RunInput{}, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return batch.RunInput{}, fmt.Errorf("open run input: %w", err)
	}
	defer f.Close()
	return batch.DecodeInput(f)
}
