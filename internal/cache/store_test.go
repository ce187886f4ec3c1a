package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []facts.Wire {
	return []facts.Wire{
		facts.WireClassByName{ClassID: 3, BeholderID: 1, ClassName: "pkg/Util"},
		facts.WireSystemClassByName{SystemClassID: 4, ClassName: "java/lang/Object"},
		facts.WireMethodFromClass{MethodID: 5, BeholderID: 3, Index: 0},
		facts.WireClassInfoIsInitialized{ClassID: 3, IsInitialized: true},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestWriteAndReadArtifact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.WriteArtifact(ctx, "pkg/Main", "main", "()V", sampleRecords())
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, a.Digest)
	assert.Equal(t, "pkg/Main.main()V", a.Key())
	assert.False(t, a.CreatedAt.IsZero())

	got, err := s.ReadArtifact(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got.Records)
	assert.Equal(t, a.Digest, got.Digest)
}

func TestWriteArtifactDedupsByDigest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a1, err := s.WriteArtifact(ctx, "pkg/Main", "main", "()V", sampleRecords())
	require.NoError(t, err)
	a2, err := s.WriteArtifact(ctx, "pkg/Main", "main", "()V", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, a1.ID, a2.ID)

	list, err := s.ListArtifacts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFindArtifact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.FindArtifact(ctx, "pkg/Main", "main", "()V")
	assert.ErrorIs(t, err, ErrNotFound)

	want, err := s.WriteArtifact(ctx, "pkg/Main", "main", "()V", sampleRecords())
	require.NoError(t, err)

	got, err := s.FindArtifact(ctx, "pkg/Main", "main", "()V")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, sampleRecords(), got.Records)
}

func TestDeleteArtifact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.WriteArtifact(ctx, "pkg/Main", "main", "()V", sampleRecords())
	require.NoError(t, err)

	require.NoError(t, s.DeleteArtifact(ctx, a.ID))
	_, err = s.ReadArtifact(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteArtifact(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadArtifactDetectsTampering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.WriteArtifact(ctx, "pkg/Main", "main", "()V", sampleRecords())
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `
		UPDATE validation_records SET payload = ? WHERE artifact_id = ? AND seq = 0
	`, `{"class_id":9,"kind":"class_by_name"}`, a.ID)
	require.NoError(t, err)

	_, err = s.ReadArtifact(ctx, a.ID)
	assert.ErrorContains(t, err, "digest mismatch")
}

func TestArtifactSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	a, err := s1.WriteArtifact(ctx, "pkg/Main", "main", "()V", sampleRecords())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.ReadArtifact(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got.Records)
}
