package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echojudge/internal/reinforcement"
)

func TestStore_QTableRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	// Nothing saved yet: cold start, no error.
	_, ok, err := s.LoadQTable()
	require.NoError(t, err)
	assert.False(t, ok)

	snap := reinforcement.Snapshot{
		Entries: map[string]reinforcement.EntrySnapshot{
			"Echo-Sage|high|low|low|FIST": {Value: 0.82, Uses: 14, LastReward: 0.6},
		},
		TotalUpdates:    14,
		PositiveRewards: 12,
		SavedAt:         time.Now().UTC(),
	}
	require.NoError(t, s.SaveQTable(snap))

	loaded, ok, err := s.LoadQTable()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.Entries, loaded.Entries)
	assert.Equal(t, snap.TotalUpdates, loaded.TotalUpdates)
}

func TestStore_QTableIsHumanReadable(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveQTable(reinforcement.Snapshot{
		Entries: map[string]reinforcement.EntrySnapshot{"sig|low|low|low|JUDGE": {Value: 0.1}},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "qtable.json"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "sig|low|low|low|JUDGE"))
	assert.True(t, strings.Contains(string(data), "\n"), "snapshot should be indented")
}

func TestStore_SignaturesRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.LoadSignatures()
	require.NoError(t, err)
	assert.False(t, ok)

	states := map[string]SignatureState{
		"Echo-Aurora": {
			EmotionSensitivity: 0.85,
			MetaSensitivity:    0.6,
			CooldownUntil:      time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
			Adaptations:        2,
		},
	}
	require.NoError(t, s.SaveSignatures(states))

	loaded, ok, err := s.LoadSignatures()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, states, loaded)
}

func TestStore_CorruptSnapshotSurfacesError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qtable.json"), []byte("{nope"), 0o644))

	_, _, err = s.LoadQTable()
	assert.Error(t, err)
}
