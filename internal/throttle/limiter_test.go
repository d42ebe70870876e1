package throttle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiterSeparatesHosts(t *testing.T) {
	hl := NewHostLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, hl.Wait(ctx, "a.example"))
	require.NoError(t, hl.Wait(ctx, "b.example"), "fresh host has its own bucket")

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, hl.Wait(short, "A.example"), "second call on the same host must wait")
}

func TestHostLimiterDisabled(t *testing.T) {
	hl := NewHostLimiter(0, 0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, hl.Wait(ctx, "sheets.googleapis.com"))
	}
}

func TestTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{Limiter: NewHostLimiter(100, 5)}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
