package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"klyppr/internal/fileutil"
)

// cliState is remembered between invocations.
type cliState struct {
	LastOutputPath string `json:"lastOutputPath,omitempty"`
}

func loadState(path string) (cliState, error) {
	var state cliState
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return cliState{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	return state, nil
}

func saveState(path string, state cliState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
