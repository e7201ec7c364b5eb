package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiClient_Do(t *testing.T) {
	var gotBody map[string]interface{}
	var gotHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-CSRF-Token")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "cookie-token", Path: "/"})
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	c, err := New(server.URL)
	require.NoError(t, err)

	req := NewRequest(http.MethodPost, "/api/orders", map[string]string{"customerName": "Ada"})
	req.Header.Set("X-CSRF-Token", "tok")

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"id":"1"}`, string(resp.Body))
	assert.Equal(t, "tok", gotHeader)
	assert.Equal(t, "Ada", gotBody["customerName"])
	assert.Equal(t, "cookie-token", c.Cookie("XSRF-TOKEN"))

	c.ClearCookies()
	assert.Empty(t, c.Cookie("XSRF-TOKEN"))
}

func TestApiClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), NewRequest(http.MethodGet, "/health", nil))
	assert.Error(t, err)
}

func TestRequest_Mutating(t *testing.T) {
	assert.False(t, NewRequest(http.MethodGet, "/api/orders", nil).Mutating())
	assert.True(t, NewRequest(http.MethodPost, "/api/orders", nil).Mutating())
	assert.True(t, NewRequest(http.MethodDelete, "/api/orders/1", nil).Mutating())
}

func TestRequest_CloneIsolatesHeaders(t *testing.T) {
	req := NewRequest(http.MethodPut, "/api/orders/1", nil)
	req.Header.Set("X-CSRF-Token", "old")

	replay := req.Clone()
	replay.Header.Set("X-CSRF-Token", "new")

	assert.Equal(t, "old", req.Header.Get("X-CSRF-Token"))
	assert.Equal(t, "new", replay.Header.Get("X-CSRF-Token"))
}

func TestCheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(server.URL)
	require.NoError(t, err)

	ok, err := c.CheckHealth(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
}
