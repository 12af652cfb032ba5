package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/planner/server/auth"
)

func TestStore_Authenticate(t *testing.T) {
	store := New()
	require.NoError(t, store.AddUser("alice", "secret"))

	// Duplicate usernames are rejected
	require.Error(t, store.AddUser("alice", "other"))

	tests := []struct {
		name    string
		creds   auth.Credentials
		wantErr bool
	}{
		{name: "Valid credentials", creds: auth.Credentials{Username: "alice", Password: "secret"}},
		{name: "Wrong password", creds: auth.Credentials{Username: "alice", Password: "wrong"}, wantErr: true},
		{name: "Unknown user", creds: auth.Credentials{Username: "bob", Password: "secret"}, wantErr: true},
		{name: "Empty credentials", creds: auth.Credentials{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := store.Authenticate(context.Background(), tt.creds)
			if tt.wantErr {
				require.Error(t, err)
				var aerr *auth.Error
				require.ErrorAs(t, err, &aerr)
				assert.Equal(t, auth.ErrInvalidCredentials, aerr.Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", principal.ID)
		})
	}
}

func TestStore_ValidateAccess(t *testing.T) {
	store := New()

	require.Error(t, store.ValidateAccess(context.Background(), nil, "/api/tasks"))
	require.NoError(t, store.ValidateAccess(context.Background(), &auth.Principal{ID: "alice"}, "/api/tasks"))
}
