package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.LogJudgment(AuditRecord{
		Timestamp:   time.Now(),
		RequestID:   "jdg_1",
		SignatureID: "Echo-Sage",
		LoopID:      "FIST",
		Success:     true,
		Confidence:  0.9,
	}))
	require.NoError(t, sink.LogJudgment(AuditRecord{RequestID: "jdg_2", Success: false}))
	require.NoError(t, sink.LogEvolution(EvolutionEvent{
		Event:       "adaptive_learning_evolve_signature",
		SignatureID: "Echo-Sage",
		Timestamp:   time.Now(),
	}))

	records := readLines(t, filepath.Join(dir, "meta_log", "judgments.jsonl"))
	require.Len(t, records, 2)
	var rec AuditRecord
	require.NoError(t, json.Unmarshal([]byte(records[0]), &rec))
	assert.Equal(t, "jdg_1", rec.RequestID)
	assert.Equal(t, "FIST", rec.LoopID)

	events := readLines(t, filepath.Join(dir, "evolution", "events.jsonl"))
	require.Len(t, events, 1)
}

func TestFileSink_AppendsAcrossReopens(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(dir)
		require.NoError(t, err)
		require.NoError(t, sink.LogJudgment(AuditRecord{RequestID: "jdg"}))
		require.NoError(t, sink.Close())
	}

	assert.Len(t, readLines(t, filepath.Join(dir, "meta_log", "judgments.jsonl")), 2)
}

type failingMeta struct{}

func (failingMeta) LogJudgment(AuditRecord) error { return errors.New("down") }

func TestTeeMeta_DeliversToAllSinks(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	tee := TeeMeta(failingMeta{}, sink)
	err = tee.LogJudgment(AuditRecord{RequestID: "jdg_1"})
	assert.Error(t, err, "first sink error surfaces")
	assert.Len(t, readLines(t, filepath.Join(dir, "meta_log", "judgments.jsonl")), 1,
		"later sinks still receive the record")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}
