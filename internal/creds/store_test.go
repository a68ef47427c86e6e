package creds

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEmpty(t *testing.T) {
	s := NewStore()
	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestStoreSetGetClear(t *testing.T) {
	s := NewStore()
	cred := Credential{
		AccessToken: "xoxb-test",
		ObtainedAt:  time.Now().UTC(),
		Scopes:      []string{"chat:write"},
		TeamID:      "T123",
		TeamName:    "testing",
	}
	s.Set(cred)

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, cred, got)

	s.Clear()
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.Set(Credential{AccessToken: "first"})

	snap, err := s.Get()
	require.NoError(t, err)

	s.Set(Credential{AccessToken: "second"})
	assert.Equal(t, "first", snap.AccessToken, "snapshot must not observe later writes")

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "second", got.AccessToken)
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := NewStore()
	s.Set(Credential{AccessToken: "tok"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if j%10 == 0 {
					s.Set(Credential{AccessToken: "tok"})
				}
				cred, err := s.Get()
				if err == nil && cred.AccessToken != "tok" {
					t.Error("torn read")
				}
			}
		}()
	}
	wg.Wait()
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "creds.json")
	cred := Credential{
		AccessToken: "xoxb-persist",
		ObtainedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Scopes:      []string{"channels:read", "chat:write"},
		TeamID:      "T999",
	}
	require.NoError(t, SaveFile(path, cred))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cred, got)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLoadFileEmptyToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, SaveFile(path, Credential{}))
	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
