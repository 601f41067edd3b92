package catalog

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"red-dress","title":"Red Dress","priceLabel":"$49","imageReference":"https://example.com/red.jpg"},
		{"id":"denim","priceLabel":"$30","imageReference":"data:image/png;base64,aGk="}
	]`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	e, ok := c.Find("denim")
	require.True(t, ok)
	assert.Equal(t, "denim", e.Title)
	assert.Equal(t, "$30", e.PriceLabel)

	_, ok = c.Find("missing")
	assert.False(t, ok)

	entries := c.Entries()
	entries[0].Title = "changed"
	first, _ := c.Find("red-dress")
	assert.Equal(t, "Red Dress", first.Title)
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	_, err := New([]Entry{{ID: "", ImageReference: "x"}})
	assert.Error(t, err)

	_, err = New([]Entry{{ID: "a"}})
	assert.Error(t, err)

	_, err = New([]Entry{{ID: "a", ImageReference: "x"}, {ID: "a", ImageReference: "y"}})
	assert.Error(t, err)
}

func TestFetchDataURL(t *testing.T) {
	up, err := Fetcher{}.Fetch(context.Background(), Entry{ID: "a", ImageReference: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pixels"))})
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), up.Data)
	assert.Equal(t, "image/png", up.MediaType)
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webp-bytes"))
	}))
	defer srv.Close()

	f := Fetcher{HTTPClient: srv.Client()}

	up, err := f.Fetch(context.Background(), Entry{ID: "a", ImageReference: srv.URL + "/dress.webp"})
	require.NoError(t, err)
	assert.Equal(t, []byte("webp-bytes"), up.Data)
	assert.Equal(t, "image/webp", up.MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("webp-bytes")), up.Encoded)

	_, err = f.Fetch(context.Background(), Entry{ID: "b", ImageReference: srv.URL + "/missing.jpg"})
	assert.Error(t, err)
}

func TestFetchUnsupportedReference(t *testing.T) {
	_, err := Fetcher{}.Fetch(context.Background(), Entry{ID: "a", ImageReference: "ftp://example.com/x.jpg"})
	assert.Error(t, err)
}
