package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	client := New(Options{})
	assert.Equal(t, DefaultTimeout, client.Timeout)

	client = New(Options{Timeout: 5 * time.Second})
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestNewSetsUserAgent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	client := New(Options{PreferIPv4: true, UserAgent: "tester/2"})

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"tester/2", "custom"}, got)
}
