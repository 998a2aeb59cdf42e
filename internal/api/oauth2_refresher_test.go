package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestOAuth2Refresher(t *testing.T) {
	var gotRefresh []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		rt := r.Form.Get("refresh_token")
		gotRefresh = append(gotRefresh, rt)

		if rt == "revoked" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-` + rt + `","token_type":"Bearer","refresh_token":"rotated","expires_in":900}`))
	}))
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID: "crmcheck",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/oauth/token", AuthStyle: oauth2.AuthStyleInParams},
	}

	r := NewOAuth2Refresher(cfg, "initial", srv.Client())
	res, err := r.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "access-initial", res.Token)
	assert.Greater(t, res.ExpiresIn.Seconds(), 800.0)

	res, err = r.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-rotated", res.Token)
	assert.Equal(t, []string{"initial", "rotated"}, gotRefresh)

	revoked := NewOAuth2Refresher(cfg, "revoked", srv.Client())
	res, err = revoked.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}
