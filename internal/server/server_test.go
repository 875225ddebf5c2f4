package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/beanlab/beanboard/pkg/board"
	"github.com/beanlab/beanboard/pkg/symbol"
)

func newTestServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()

	cfg := &Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = ":memory:"
	require.NoError(t, cfg.Validate())
	if mutate != nil {
		mutate(cfg)
	}

	s, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.shutdownComponents()
	})

	ts := httptest.NewServer(s.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// get issues a GET and returns status and trimmed body.
func get(t *testing.T, ts *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// pushString appends each character of s to the field via its symbol index.
func pushString(t *testing.T, ts *httptest.Server, client, field, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		idx, err := symbol.Decode(s[i])
		require.NoError(t, err)
		status, body := get(t, ts, "/v1/"+field+"/push/"+itoa(idx)+"?s="+client)
		require.Equal(t, http.StatusOK, status, body)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

// encodeValue renders v as a symbol string, most-significant first.
func encodeValue(t *testing.T, v int64) string {
	t.Helper()
	var buf []byte
	for {
		c, err := symbol.Encode(int(v % int64(symbol.Base)))
		require.NoError(t, err)
		buf = append([]byte{c}, buf...)
		v /= int64(symbol.Base)
		if v == 0 {
			return string(buf)
		}
	}
}

func TestProtocol_FullScenario(t *testing.T) {
	ts := newTestServer(t, nil)
	const client = "lsl1"

	status, body := get(t, ts, "/v1/id/reset?s="+client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)

	pushString(t, ts, client, "id", "AAAAAAAA")
	status, _ = get(t, ts, "/v1/id/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	status, _ = get(t, ts, "/v1/world/commit/Arena?s="+client)
	require.Equal(t, http.StatusOK, status)

	pushString(t, ts, client, "name", "Hero")
	status, _ = get(t, ts, "/v1/name/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	pushString(t, ts, client, "time", encodeValue(t, 5000))
	status, _ = get(t, ts, "/v1/time/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	pushString(t, ts, client, "beans", encodeValue(t, 3))
	status, _ = get(t, ts, "/v1/beans/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	status, body = get(t, ts, "/v1/board?world=Arena")
	require.Equal(t, http.StatusOK, status)

	var entries []board.Entry
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Hero", entries[0].DisplayName)
	assert.Equal(t, "Arena", entries[0].WorldID)
	assert.Equal(t, int64(5000), entries[0].TotalElapsedMs)
	assert.Equal(t, int64(3), entries[0].CounterValue)

	status, body = get(t, ts, "/v1/board/text")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[Hero] : 00:00:05:000 | 3\n", body)
}

func TestProtocol_ErrorTokens(t *testing.T) {
	ts := newTestServer(t, nil)
	const client = "lsl2"

	// Unknown field.
	status, body := get(t, ts, "/v1/bogus/reset?s="+client)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ERR_FIELD\n", body)

	// Symbol index out of range. 64 is the value terminator and only the
	// fixed-length identity rejects it.
	status, body = get(t, ts, "/v1/name/push/65?s="+client)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERR_SYMBOL\n", body)

	status, body = get(t, ts, "/v1/id/push/64?s="+client)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERR_SYMBOL\n", body)

	// Non-numeric symbol segment.
	status, body = get(t, ts, "/v1/name/push/x?s="+client)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERR_SYMBOL\n", body)

	// Commit without any session.
	status, body = get(t, ts, "/v1/time/commit?s=nobody")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ERR_STALE\n", body)

	// Identity commit with a short buffer.
	_, _ = get(t, ts, "/v1/id/reset?s="+client)
	pushString(t, ts, client, "id", "AAA")
	status, body = get(t, ts, "/v1/id/commit?s="+client)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERR_IDENTITY\n", body)

	// Field commit without a handshake.
	pushString(t, ts, client, "name", "x")
	status, body = get(t, ts, "/v1/name/commit?s="+client)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERR_HANDSHAKE\n", body)

	// Empty buffer after a completed handshake.
	pushString(t, ts, client, "id", "AAAAA")
	status, _ = get(t, ts, "/v1/id/commit?s="+client)
	require.Equal(t, http.StatusOK, status)
	status, body = get(t, ts, "/v1/time/commit?s="+client)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERR_EMPTY\n", body)
}

func TestProtocol_MonotonicTimeOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	const client = "lsl3"

	_, _ = get(t, ts, "/v1/id/reset?s="+client)
	pushString(t, ts, client, "id", "BBBBBBBB")
	status, _ := get(t, ts, "/v1/id/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	pushString(t, ts, client, "time", encodeValue(t, 5000))
	status, _ = get(t, ts, "/v1/time/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	pushString(t, ts, client, "time", encodeValue(t, 3000))
	status, _ = get(t, ts, "/v1/time/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	status, body := get(t, ts, "/v1/board")
	require.Equal(t, http.StatusOK, status)

	var entries []board.Entry
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5000), entries[0].TotalElapsedMs)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	status, _ := get(t, ts, "/healthz")
	assert.Equal(t, http.StatusOK, status)

	// Readiness is starting until Run flips it.
	status, _ = get(t, ts, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestAdminDelete(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekr1t"), bcrypt.MinCost)
	require.NoError(t, err)

	ts := newTestServer(t, func(cfg *Config) {
		cfg.Admin.KeyHash = string(hash)
	})
	const client = "lsl4"

	_, _ = get(t, ts, "/v1/id/reset?s="+client)
	pushString(t, ts, client, "id", "CCCCCCCC")
	status, _ := get(t, ts, "/v1/id/commit?s="+client)
	require.Equal(t, http.StatusOK, status)
	pushString(t, ts, client, "time", encodeValue(t, 5000))
	status, _ = get(t, ts, "/v1/time/commit?s="+client)
	require.Equal(t, http.StatusOK, status)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/admin/scores/CCCCCCCC", nil)
	require.NoError(t, err)

	// No key: rejected.
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With the key: deleted.
	req.Header.Set("X-Admin-Key", "sekr1t")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, body := get(t, ts, "/v1/board")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]\n", body)
}
