package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/futures-stream/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ListenKeyClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig()
	config.BaseURL = server.URL
	config.APIKey = "test-api-key"
	config.RetryDelay = 10 * time.Millisecond
	config.Logger = logging.NewNopLogger()
	return NewListenKeyClient(config)
}

func TestStartReturnsListenKey(t *testing.T) {
	var gotMethod, gotPath, gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{"listenKey":"pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1"}`))
	})

	key, err := client.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1", key)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/fapi/v1/listenKey", gotPath)
	assert.Equal(t, "test-api-key", gotKey)
}

func TestKeepAliveAndClose(t *testing.T) {
	var methods []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.KeepAlive(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, []string{http.MethodPut, http.MethodDelete}, methods)
}

func TestStartRejectsMissingKeyInResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.Start(context.Background())
	require.Error(t, err)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key"}`))
	})

	_, err := client.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-2015")
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"listenKey":"recovered"}`))
	})

	key, err := client.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recovered", key)
	assert.Equal(t, int32(3), calls.Load())
}
