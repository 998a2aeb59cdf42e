package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKeys struct {
	key     string
	saveErr error
	cleared bool
}

func (m *memKeys) Load() (string, error) { return m.key, nil }
func (m *memKeys) Save(key string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.key = key
	return nil
}
func (m *memKeys) Clear() error {
	m.key = ""
	m.cleared = true
	return nil
}

func TestNew_LoadsPersistedKey(t *testing.T) {
	s := New(WithKeyPersister(&memKeys{key: "persisted"}), WithToken("tok"))

	creds := s.Credentials()
	assert.Equal(t, "persisted", creds.APIKey)
	assert.Equal(t, "tok", creds.BearerToken)
	assert.True(t, creds.UsesAPIKey())
	assert.True(t, creds.HasAuth())
}

func TestSetAPIKey_WritesThrough(t *testing.T) {
	keys := &memKeys{}
	s := New(WithKeyPersister(keys))

	require.NoError(t, s.SetAPIKey("k1"))
	assert.Equal(t, "k1", keys.key)
	assert.Equal(t, "k1", s.APIKey())

	require.NoError(t, s.ClearAPIKey())
	assert.True(t, keys.cleared)
	assert.Empty(t, s.APIKey())
}

func TestSetAPIKey_PersistFailureKeepsOldKey(t *testing.T) {
	keys := &memKeys{key: "old", saveErr: errors.New("disk full")}
	s := New(WithKeyPersister(keys))

	assert.Error(t, s.SetAPIKey("new"))
	assert.Equal(t, "old", s.APIKey())
}

func TestSetToken_NotPersisted(t *testing.T) {
	keys := &memKeys{}
	s := New(WithKeyPersister(keys))

	s.SetToken("bearer")
	assert.Equal(t, "bearer", s.Token())
	assert.Empty(t, keys.key)
}

func TestClearArtifacts_LeavesCredentials(t *testing.T) {
	s := New(WithToken("tok"))
	require.NoError(t, s.SetAPIKey("key"))
	s.SetUser(json.RawMessage(`{"id":"u1"}`))
	s.SetTokenExpiry(time.Now().Add(time.Hour))

	s.ClearArtifacts()

	assert.Nil(t, s.User())
	assert.True(t, s.TokenExpiry().IsZero())
	assert.Equal(t, "tok", s.Token())
	assert.Equal(t, "key", s.APIKey())
}

func TestCredentials_Empty(t *testing.T) {
	creds := New().Credentials()
	assert.False(t, creds.HasAuth())
	assert.False(t, creds.UsesAPIKey())
}
