package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeExchanger_Exchange(t *testing.T) {
	t.Run("exchanges code with verifier", func(t *testing.T) {
		var form map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			form = map[string]string{}
			for k := range r.PostForm {
				form[k] = r.PostForm.Get(k)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-token",
				"token_type":    "Bearer",
				"refresh_token": "refresh-token",
				"expires_in":    3600,
				"id_token":      "header.payload.sig",
				"scope":         "openid User.Read",
			})
		}))
		defer server.Close()

		e := NewCodeExchanger("client-123", server.URL+"/authorize", server.URL+"/token",
			WithExchangeHTTPClient(server.Client()))

		tok, err := e.Exchange(context.Background(), "abc123", "http://localhost:4711/", "verifier-xyz")
		require.NoError(t, err)

		assert.Equal(t, "authorization_code", form["grant_type"])
		assert.Equal(t, "abc123", form["code"])
		assert.Equal(t, "http://localhost:4711/", form["redirect_uri"])
		assert.Equal(t, "verifier-xyz", form["code_verifier"])
		assert.Equal(t, "client-123", form["client_id"])

		assert.Equal(t, "access-token", tok.AccessToken)
		assert.Equal(t, "refresh-token", tok.RefreshToken)
		assert.Equal(t, "header.payload.sig", tok.IDToken)
		assert.Equal(t, []string{"openid", "User.Read"}, tok.Scopes())
		assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, time.Minute)
	})

	t.Run("omits verifier when empty", func(t *testing.T) {
		var hasVerifier bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			hasVerifier = r.PostForm.Has("code_verifier")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"a","token_type":"Bearer"}`))
		}))
		defer server.Close()

		e := NewCodeExchanger("c", server.URL+"/authorize", server.URL+"/token", WithExchangeHTTPClient(server.Client()))
		_, err := e.Exchange(context.Background(), "code", "http://localhost:1/", "")
		require.NoError(t, err)
		assert.False(t, hasVerifier)
	})

	t.Run("surfaces token endpoint error code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
		}))
		defer server.Close()

		e := NewCodeExchanger("c", server.URL+"/authorize", server.URL+"/token", WithExchangeHTTPClient(server.Client()))
		_, err := e.Exchange(context.Background(), "code", "http://localhost:1/", "v")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_grant")
	})

	t.Run("validates inputs", func(t *testing.T) {
		_, err := NewCodeExchanger("c", "https://a/authorize", "https://a/token").Exchange(context.Background(), "", "http://localhost:1/", "")
		assert.Error(t, err)

		_, err = NewCodeExchanger("c", "https://a/authorize", "").Exchange(context.Background(), "code", "http://localhost:1/", "")
		assert.Error(t, err)
	})
}
