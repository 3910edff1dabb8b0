package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

func TestCredentialStore_Defaults(t *testing.T) {
	store := NewCredentialStore(domainauth.UserRecord{ID: "1", Email: "A@example.com", Role: domainauth.RoleAdmin})
	ctx := context.Background()

	rec, err := store.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)

	_, err = store.FindByEmail(ctx, "b@example.com")
	assert.ErrorIs(t, err, domainauth.ErrUserNotFound)

	_, err = store.Create(ctx, ports.NewUser{Email: "a@example.com"})
	assert.ErrorIs(t, err, domainauth.ErrEmailTaken)
	assert.Equal(t, 2, store.Finds)
	assert.Equal(t, 1, store.Creates)
}

func TestPlainHasher(t *testing.T) {
	h := PlainHasher{}
	hash, err := h.Hash("pw")
	require.NoError(t, err)
	assert.True(t, h.Verify("pw", hash))
	assert.False(t, h.Verify("pw", "pw"))
	assert.False(t, h.Verify("other", hash))
}

func TestRecordingSessionStore(t *testing.T) {
	s := &RecordingSessionStore{}
	require.NoError(t, s.Set(ports.RequestScope{}, domainauth.SessionClaims{SubjectID: "u"}))
	require.NoError(t, s.Clear(ports.RequestScope{}))
	assert.Len(t, s.SetCalls, 1)
	assert.Equal(t, 1, s.ClearCalls)
}
