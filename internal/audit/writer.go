// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package audit appends flattened roster snapshots to a durable append-only
// tracking log for offline analysis. One CSV file is written per calendar
// day; the file handle is owned exclusively by this package.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xrss/brahma/internal/models"
)

// timestampLayout matches the ISO-8601 millisecond timestamps the analysis
// notebooks already parse.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// header builds the fixed 51-column CSV header:
// timestamp, name, color, then 16 components each for HMD/LC/RC.
func header() string {
	cols := make([]string, 0, 51)
	cols = append(cols, "timestamp", "name", "color")
	for _, prefix := range []string{"HMD", "LC", "RC"} {
		for i := 0; i < 16; i++ {
			cols = append(cols, fmt.Sprintf("%s_m%d", prefix, i))
		}
	}
	return strings.Join(cols, ",") + "\n"
}

// Writer owns one day's tracking log file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// FilePath returns the date-stamped log path for the given day.
func FilePath(dir, prefix string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, day.Format("01-02-2006")))
}

// NewWriter opens (or creates) the tracking log for the current date. A file
// that already exists is appended to; the header row is written only on
// creation. Any failure here is fatal to the caller: the relay must not
// serve without a working audit trail, since audit data cannot be
// reconstructed retroactively.
func NewWriter(dir, prefix string) (*Writer, error) {
	path := FilePath(dir, prefix, time.Now())

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking log %s: %w", path, err)
	}

	if isNew {
		if _, err := file.WriteString(header()); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to write tracking log header: %w", err)
		}
	}

	return &Writer{file: file, path: path}, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one row per fully-posed participant in the snapshot, all
// stamped with the same sample time. Participants without a pose yet are
// skipped for this sample; that is expected for freshly joined clients, not
// an error. Returns the number of rows written.
func (w *Writer) Append(sampledAt time.Time, snapshot []models.ParticipantState) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	timestamp := sampledAt.UTC().Format(timestampLayout)
	rows := 0

	var sb strings.Builder
	for i := range snapshot {
		p := &snapshot[i]
		if !p.HasPose() {
			continue
		}
		writeRow(&sb, timestamp, p)
		rows++
	}

	if rows == 0 {
		return 0, nil
	}
	if _, err := w.file.WriteString(sb.String()); err != nil {
		return 0, fmt.Errorf("failed to append tracking rows: %w", err)
	}
	return rows, nil
}

// writeRow appends one flattened CSV row to sb.
func writeRow(sb *strings.Builder, timestamp string, p *models.ParticipantState) {
	sb.WriteString(timestamp)
	sb.WriteByte(',')
	sb.WriteString(p.Name)
	sb.WriteByte(',')
	sb.WriteString(p.Color)
	for _, m := range []models.Mat4{p.Embodiment.HMD, p.Embodiment.LeftController, p.Embodiment.RightController} {
		for _, v := range m {
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	sb.WriteByte('\n')
}

// Close flushes and closes the log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
