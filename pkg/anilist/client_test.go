package anilist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(t.TempDir(), Config{ClientID: "27391", RedirectPort: 8000})
	c.httpClient = srv.Client()
	c.endpoint = srv.URL
	return c, srv
}

func TestIsAuthenticatedNoToken(t *testing.T) {
	c := NewClient(t.TempDir(), Config{})
	require.False(t, c.IsAuthenticated())
}

func TestIsAuthenticatedExpired(t *testing.T) {
	c := NewClient(t.TempDir(), Config{})
	c.token = &Token{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Hour)}
	require.False(t, c.IsAuthenticated())
}

func TestSaveLoadTokenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewClient(dir, Config{})
	c.token = &Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour), UserID: 42}
	require.NoError(t, c.saveToken())

	reloaded := NewClient(dir, Config{})
	require.True(t, reloaded.IsAuthenticated())
	require.Equal(t, 42, reloaded.token.UserID)
}

func TestViewerDegradesWithoutAuth(t *testing.T) {
	c := NewClient(t.TempDir(), Config{})
	require.Nil(t, c.Viewer(context.Background()))
}

func TestSearchDegradesOnServerError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	results := c.Search(context.Background(), "anything")
	require.Nil(t, results)
}

func TestSearchParsesMediaList(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"Page":{"media":[
			{"id":101922,"title":{"romaji":"Kimetsu no Yaiba","english":"Demon Slayer","native":"鬼滅の刃"},"episodes":26}
		]}}}`))
	})
	defer srv.Close()

	results := c.Search(context.Background(), "Kimetsu")
	require.Len(t, results, 1)
	require.Equal(t, int64(101922), results[0].ID)
	require.Equal(t, "Demon Slayer", results[0].Title.English)
}

func TestGraphqlRequestReturnsErrorOnErrorsKey(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors":[{"message":"Too Many Requests"}]}`))
	})
	defer srv.Close()

	_, err := c.graphqlRequest(context.Background(), `query{Viewer{id}}`, nil)
	require.Error(t, err)
}

func TestUserListDegradesWithoutAuth(t *testing.T) {
	c := NewClient(t.TempDir(), Config{})
	require.Nil(t, c.UserList(context.Background(), StatusCurrent))
}

func TestUpdateProgressDegradesOnFailure(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	require.False(t, c.UpdateProgress(context.Background(), 1, 5))
}
