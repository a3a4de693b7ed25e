package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log file layout under the data directory.
const (
	metaLogDir     = "meta_log"
	evolutionDir   = "evolution"
	judgmentsFile  = "judgments.jsonl"
	evolutionsFile = "events.jsonl"
	logFilePerm    = 0o644
	logDirPerm     = 0o755
)

// FileSink appends audit records and evolution events as JSON lines under
// the data directory, one subdirectory per category. Appends are serialized;
// a write failure surfaces to the caller, who treats it as best-effort.
type FileSink struct {
	mu        sync.Mutex
	judgments *os.File
	events    *os.File
}

// NewFileSink opens (creating as needed) the log files under dir.
func NewFileSink(dir string) (*FileSink, error) {
	judgments, err := openAppend(filepath.Join(dir, metaLogDir), judgmentsFile)
	if err != nil {
		return nil, err
	}
	events, err := openAppend(filepath.Join(dir, evolutionDir), evolutionsFile)
	if err != nil {
		judgments.Close()
		return nil, err
	}
	return &FileSink{judgments: judgments, events: events}, nil
}

// LogJudgment appends the audit record as one JSON line.
func (s *FileSink) LogJudgment(rec AuditRecord) error {
	return s.appendLine(s.judgments, rec)
}

// LogEvolution appends the evolution event as one JSON line.
func (s *FileSink) LogEvolution(ev EvolutionEvent) error {
	return s.appendLine(s.events, ev)
}

// Close flushes and closes both log files.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.judgments.Close()
	if err2 := s.events.Close(); err == nil {
		err = err2
	}
	return err
}

func (s *FileSink) appendLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func openAppend(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// =============================================================================
// FAN-OUT
// =============================================================================

type teeMeta struct{ sinks []MetaLogger }

// TeeMeta fans audit records out to every sink, returning the first error.
func TeeMeta(sinks ...MetaLogger) MetaLogger {
	return teeMeta{sinks: sinks}
}

func (t teeMeta) LogJudgment(rec AuditRecord) error {
	var first error
	for _, s := range t.sinks {
		if err := s.LogJudgment(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type teeEvolution struct{ sinks []EvolutionLogger }

// TeeEvolution fans evolution events out to every sink.
func TeeEvolution(sinks ...EvolutionLogger) EvolutionLogger {
	return teeEvolution{sinks: sinks}
}

func (t teeEvolution) LogEvolution(ev EvolutionEvent) error {
	var first error
	for _, s := range t.sinks {
		if err := s.LogEvolution(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
