package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracevcs/grace-server/pkg/config"
	"github.com/gracevcs/grace-server/pkg/pipeline"
	"github.com/gracevcs/grace-server/pkg/types"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.HealthAddr = "127.0.0.1:0"
	cfg.ReminderTick = config.Duration(10 * time.Millisecond)

	srv, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	})
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerEndpoints(t *testing.T) {
	srv := startTestServer(t)
	base := "http://" + srv.Addr()

	status, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "ok")

	status, body = get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "storage")
	assert.Contains(t, body, "broker")
	assert.Contains(t, body, "reminders")

	status, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}

func TestServerServesPipeline(t *testing.T) {
	srv := startTestServer(t)

	resp := srv.Pipeline().CreateOwner(context.Background(), pipeline.CreateOwnerRequest{
		OwnerID:       uuid.NewString(),
		Name:          "alice",
		Type:          string(types.OwnerTypeUser),
		CorrelationID: uuid.NewString(),
	})
	require.True(t, resp.Ok(), resp.Error)

	got := srv.Pipeline().GetOwner(context.Background(), pipeline.OwnerRequest{
		OwnerName:     "alice",
		CorrelationID: uuid.NewString(),
	})
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "alice", got.Result.Name)
}
