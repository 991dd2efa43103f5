package gatewayhttp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevelDBNoncePersistenceEnsureNonceFirstAndSecondSeen(t *testing.T) {
	dir := t.TempDir()
	p, err := OpenLevelDBNoncePersistence(filepath.Join(dir, "nonces"))
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	rec := NonceRecord{APIKey: "ops", Timestamp: "1000", Nonce: "n1", ObservedAt: time.Now().UTC()}

	existed, err := p.EnsureNonce(ctx, rec)
	require.NoError(t, err)
	require.False(t, existed)

	existed, err = p.EnsureNonce(ctx, rec)
	require.NoError(t, err)
	require.True(t, existed, "re-ensuring the same nonce must report it as already seen")
}

func TestLevelDBNoncePersistenceRecentNoncesRespectsCutoff(t *testing.T) {
	dir := t.TempDir()
	p, err := OpenLevelDBNoncePersistence(filepath.Join(dir, "nonces"))
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)
	recent := time.Now().UTC()

	_, err = p.EnsureNonce(ctx, NonceRecord{APIKey: "ops", Timestamp: "1", Nonce: "old", ObservedAt: old})
	require.NoError(t, err)
	_, err = p.EnsureNonce(ctx, NonceRecord{APIKey: "ops", Timestamp: "2", Nonce: "new", ObservedAt: recent})
	require.NoError(t, err)

	records, err := p.RecentNonces(ctx, recent.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "new", records[0].Nonce)
}

func TestLevelDBNoncePersistencePruneRemovesOldEntries(t *testing.T) {
	dir := t.TempDir()
	p, err := OpenLevelDBNoncePersistence(filepath.Join(dir, "nonces"))
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)
	recent := time.Now().UTC()

	_, err = p.EnsureNonce(ctx, NonceRecord{APIKey: "ops", Timestamp: "1", Nonce: "old", ObservedAt: old})
	require.NoError(t, err)
	_, err = p.EnsureNonce(ctx, NonceRecord{APIKey: "ops", Timestamp: "2", Nonce: "new", ObservedAt: recent})
	require.NoError(t, err)

	require.NoError(t, p.PruneNonces(ctx, recent.Add(-time.Minute)))

	records, err := p.RecentNonces(ctx, old.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "new", records[0].Nonce)
}

func TestLevelDBNoncePersistenceRejectsEmptyPath(t *testing.T) {
	_, err := OpenLevelDBNoncePersistence("")
	require.Error(t, err)
}
