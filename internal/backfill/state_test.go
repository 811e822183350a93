package backfill

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStoreMissingFileYieldsZeroState(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "ingest-state.json"))

	state, err := store.Load()
	require.NoError(t, err)
	assert.False(t, state.DailyDone)
	assert.False(t, state.InstantDone)
	assert.Nil(t, state.LastDailyYear)
}

func TestStateStoreRoundTrip(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "ingest-state.json"))

	year := 1987
	updated := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	state := State{DailyDone: true, LastDailyYear: &year, LastUpdate: &updated}
	state.Note("05568500", "daily through 1987")

	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.DailyDone)
	require.NotNil(t, loaded.LastDailyYear)
	assert.Equal(t, 1987, *loaded.LastDailyYear)
	assert.Equal(t, "daily through 1987", loaded.SiteProgress["05568500"])
}

func TestStateStoreSaveOverwrites(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "ingest-state.json"))

	first := 1950
	require.NoError(t, store.Save(State{LastDailyYear: &first}))

	second := 1951
	require.NoError(t, store.Save(State{LastDailyYear: &second}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded.LastDailyYear)
	assert.Equal(t, 1951, *loaded.LastDailyYear)
}
