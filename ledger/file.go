// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultPath is where the file ledger lives unless configured otherwise.
const DefaultPath = "resources/visited_urls.json"

// FileLedger persists the set as a sorted JSON array of URL strings.
type FileLedger struct {
	set
	path   string
	logger *slog.Logger
}

var _ Ledger = (*FileLedger)(nil)

// NewFileLedger creates a ledger backed by path. Nothing is read until Load.
func NewFileLedger(path string) (*FileLedger, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &FileLedger{
		set:    set{urls: make(map[string]struct{})},
		path:   path,
		logger: slog.Default().With("component", "ledger", "path", path),
	}, nil
}

// Path returns the backing file.
func (l *FileLedger) Path() string {
	return l.path
}

// Load reads the file. A missing file is an empty ledger.
func (l *FileLedger) Load(_ context.Context) error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptLedger, err)
	}
	l.replace(urls)
	l.logger.Debug("loaded ledger", "urls", len(urls))
	return nil
}

// Save writes the set to a temporary file in the same directory and renames
// it over the ledger, so readers see either the old or the new contents.
func (l *FileLedger) Save(_ context.Context) error {
	data, err := json.MarshalIndent(l.sorted(), "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	l.logger.Debug("saved ledger", "urls", l.Len())
	return nil
}

// Clear empties the set and removes the file.
func (l *FileLedger) Clear(_ context.Context) error {
	l.replace(nil)
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove ledger: %w", err)
	}
	return nil
}
