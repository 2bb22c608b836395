package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stores runs f against every ChallengeStore implementation.
func stores(t *testing.T, f func(t *testing.T, s ChallengeStore)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		f(t, newTestStore(t))
	})
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		f(t, NewMemoryStore())
	})
}

func TestSQLiteStore_Migration_CreatesTablesAndVersion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var version int
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestSQLiteStore_Migration_IsIdempotentAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "boardcast.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordChallenge(&Challenge{Token: "secret_one"}))
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.LatestChallenge()
	require.NoError(t, err)
	assert.Equal(t, "secret_one", got.Token)
}

func TestChallengeStore_RecordAndLatest(t *testing.T) {
	t.Parallel()
	stores(t, func(t *testing.T, s ChallengeStore) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		first := &Challenge{Token: "secret_a", RemoteAddr: "10.0.0.1", ReceivedAt: base}
		second := &Challenge{Token: "secret_b", RemoteAddr: "10.0.0.2", ReceivedAt: base.Add(time.Minute)}
		require.NoError(t, s.RecordChallenge(first))
		require.NoError(t, s.RecordChallenge(second))
		assert.NotZero(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)

		got, err := s.LatestChallenge()
		require.NoError(t, err)
		assert.Equal(t, "secret_b", got.Token)
		assert.Equal(t, "10.0.0.2", got.RemoteAddr)
		assert.True(t, got.ReceivedAt.Equal(base.Add(time.Minute)))
	})
}

func TestChallengeStore_LatestChallenge_WhenEmpty_ReturnsErrNotFound(t *testing.T) {
	t.Parallel()
	stores(t, func(t *testing.T, s ChallengeStore) {
		_, err := s.LatestChallenge()
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChallengeStore_ListChallenges_NewestFirstWithLimit(t *testing.T) {
	t.Parallel()
	stores(t, func(t *testing.T, s ChallengeStore) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for i, tok := range []string{"t1", "t2", "t3"} {
			require.NoError(t, s.RecordChallenge(&Challenge{
				Token:      tok,
				ReceivedAt: base.Add(time.Duration(i) * time.Second),
			}))
		}

		all, err := s.ListChallenges(0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"t3", "t2", "t1"}, []string{all[0].Token, all[1].Token, all[2].Token})

		two, err := s.ListChallenges(2)
		require.NoError(t, err)
		assert.Len(t, two, 2)
	})
}

func TestChallengeStore_ListChallenges_OrdersSubSecondTimestamps(t *testing.T) {
	t.Parallel()
	stores(t, func(t *testing.T, s ChallengeStore) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.RecordChallenge(&Challenge{Token: "later", ReceivedAt: base.Add(100 * time.Millisecond)}))
		require.NoError(t, s.RecordChallenge(&Challenge{Token: "earlier", ReceivedAt: base}))

		got, err := s.LatestChallenge()
		require.NoError(t, err)
		assert.Equal(t, "later", got.Token)
	})
}

func TestChallengeStore_Cleanup_RemovesOlderThanCutoff(t *testing.T) {
	t.Parallel()
	stores(t, func(t *testing.T, s ChallengeStore) {
		now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.RecordChallenge(&Challenge{Token: "old", ReceivedAt: now.AddDate(0, 0, -40)}))
		require.NoError(t, s.RecordChallenge(&Challenge{Token: "fresh", ReceivedAt: now.AddDate(0, 0, -1)}))

		n, err := s.Cleanup(now.AddDate(0, 0, -30))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		all, err := s.ListChallenges(0)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "fresh", all[0].Token)
	})
}

func TestChallengeStore_RecordChallenge_StampsZeroTime(t *testing.T) {
	t.Parallel()
	stores(t, func(t *testing.T, s ChallengeStore) {
		c := &Challenge{Token: "secret_now"}
		before := time.Now().Add(-time.Second)
		require.NoError(t, s.RecordChallenge(c))
		assert.True(t, c.ReceivedAt.After(before))
	})
}
