package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadengine/internal/config"
	"leadengine/internal/domain"
)

func TestHTTPJSONScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jobs": [
				{"id": "1", "name": "Go Engineer", "org": {"name": "Acme"}, "apply": "https://acme.example/1"},
				{"id": "2", "name": "Rust Engineer", "org": {"name": "Beta"}, "apply": "https://beta.example/2"}
			]
		}`))
	}))
	defer srv.Close()

	a := newHTTPJSON(config.Source{
		ID:  "feed",
		URL: srv.URL,
		Fields: map[string]string{
			"items":       "jobs",
			"external_id": "id",
			"title":       "name",
			"company":     "org.name",
			"url":         "apply",
		},
	})

	records, cursor, err := a.Scan(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `"v1"`, cursor)
	assert.Equal(t, "Go Engineer", records[0].Title)
	assert.Equal(t, "Acme", records[0].Company)
	assert.Equal(t, "https://acme.example/1", records[0].URL)
	assert.NotEmpty(t, records[0].RawJSON)

	// second scan rides the ETag
	records, next, err := a.Scan(context.Background(), cursor)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, cursor, next)
}

func TestHTTPJSONServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newHTTPJSON(config.Source{ID: "feed", URL: srv.URL})
	_, _, err := a.Scan(context.Background(), "")
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestHTTPJSONClientErrorIsFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := newHTTPJSON(config.Source{ID: "feed", URL: srv.URL})
	_, _, err := a.Scan(context.Background(), "")
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
}
