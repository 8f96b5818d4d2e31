package identity

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_SetAndSubscribe(t *testing.T) {
	h := NewHolder()

	_, ok := h.Current()
	assert.False(t, ok)

	var seen []string
	unsubscribe := h.Subscribe(func(id string) { seen = append(seen, id) })

	h.Set("alice")
	h.Set("alice")
	h.Set("")
	h.Set("bob")

	id, ok := h.Current()
	assert.True(t, ok)
	assert.Equal(t, "bob", id)
	assert.Equal(t, []string{"alice", "", "bob"}, seen)

	unsubscribe()
	unsubscribe()
	h.Set("carol")
	assert.Len(t, seen, 3)
}

type fakeAuthClient struct {
	token *auth.Token
	err   error
}

func (f fakeAuthClient) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	tests := []struct {
		name    string
		client  fakeAuthClient
		token   string
		want    *Principal
		wantErr bool
	}{
		{
			name:   "valid token with email",
			client: fakeAuthClient{token: &auth.Token{UID: "uid-1", Claims: map[string]interface{}{"email": " a@b.c "}}},
			token:  "tok",
			want:   &Principal{CustomerID: "uid-1", Email: "a@b.c"},
		},
		{
			name:   "valid token without email",
			client: fakeAuthClient{token: &auth.Token{UID: "uid-2"}},
			token:  "tok",
			want:   &Principal{CustomerID: "uid-2"},
		},
		{
			name:    "empty token",
			client:  fakeAuthClient{token: &auth.Token{UID: "uid-1"}},
			token:   "  ",
			wantErr: true,
		},
		{
			name:    "verification fails",
			client:  fakeAuthClient{err: errors.New("expired")},
			token:   "tok",
			wantErr: true,
		},
		{
			name:    "blank uid",
			client:  fakeAuthClient{token: &auth.Token{UID: " "}},
			token:   "tok",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &FirebaseVerifier{client: tt.client}
			got, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
