package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMask(t *testing.T) {
	payload := map[string]interface{}{
		"income": map[string]interface{}{"amount": 120000.0},
		"Email":  "a@b.c",
		"obligations": []interface{}{
			map[string]interface{}{"name": "Visa", "phone": "+7000"},
		},
		"contact": map[string]interface{}{
			"user":     map[string]interface{}{"id": 1.0},
			"username": "jdoe",
		},
		"meta": map[string]interface{}{"client_id": "abc-123", "request_id": "req-1"},
	}

	masked := Mask(payload)

	assert.Equal(t, Masked, masked["Email"])
	obligation := masked["obligations"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, Masked, obligation["phone"])
	assert.Equal(t, "Visa", obligation["name"])
	contact := masked["contact"].(map[string]interface{})
	assert.Equal(t, Masked, contact["user"])
	assert.Equal(t, Masked, contact["username"])

	meta := masked["meta"].(map[string]interface{})
	assert.Equal(t, Pseudonym, meta["client_id"])
	assert.Equal(t, "req-1", meta["request_id"])

	// Input is untouched.
	assert.Equal(t, "a@b.c", payload["Email"])
	assert.Equal(t, "abc-123", payload["meta"].(map[string]interface{})["client_id"])
}

func TestNewEntryFromStruct(t *testing.T) {
	type meta struct {
		ClientID string `json:"client_id"`
	}
	type request struct {
		Email string `json:"email"`
		Meta  meta   `json:"meta"`
	}

	type result struct {
		RiskBand string `json:"risk_band"`
		Meta     meta   `json:"meta"`
	}

	e, err := NewEntry(testNow, "req-1", "/pdn/calc", request{Email: "x@y.z", Meta: meta{ClientID: "c1"}}, result{RiskBand: "LOW", Meta: meta{ClientID: "c1"}})
	require.NoError(t, err)

	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "/pdn/calc", e.Endpoint)
	assert.Equal(t, Masked, e.Payload["email"])
	assert.Equal(t, Pseudonym, e.Payload["meta"].(map[string]interface{})["client_id"])

	res := e.Result.(map[string]interface{})
	assert.Equal(t, "LOW", res["risk_band"])
	assert.Equal(t, Pseudonym, res["meta"].(map[string]interface{})["client_id"])
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for _, id := range []string{"req-1", "req-2", "req-1"} {
		e, err := NewEntry(testNow, id, "/pdn/calc", map[string]interface{}{"email": "x"}, nil)
		require.NoError(t, err)
		require.NoError(t, store.Append(ctx, e))
	}

	entries, err := store.ByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, Masked, e.Payload["email"])
		assert.True(t, e.Timestamp.Equal(testNow))
	}

	entries, err = store.ByRequestID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0644))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Entry{RequestID: "req-1", Endpoint: "/pdn/calc"}))

	entries, err := store.ByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRedisStoreAppend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "", time.Hour)

	e := Entry{Timestamp: testNow, RequestID: "req-1", Endpoint: "/pdn/calc/business"}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	mock.ExpectRPush("pdn:audit:req-1", string(data)).SetVal(1)
	mock.ExpectExpire("pdn:audit:req-1", time.Hour).SetVal(true)

	require.NoError(t, store.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreAppendWithoutTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "audit:", 0)

	e := Entry{Timestamp: testNow, RequestID: "req-2"}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	mock.ExpectRPush("audit:req-2", string(data)).SetVal(1)

	require.NoError(t, store.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreByRequestID(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "", 0)

	first, err := json.Marshal(Entry{Timestamp: testNow, RequestID: "req-1", Endpoint: "/pdn/calc"})
	require.NoError(t, err)
	second, err := json.Marshal(Entry{Timestamp: testNow, RequestID: "req-1", Endpoint: "/pdn/calc/business"})
	require.NoError(t, err)

	mock.ExpectLRange("pdn:audit:req-1", 0, -1).SetVal([]string{string(first), string(second)})

	entries, err := store.ByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/pdn/calc", entries[0].Endpoint)
	assert.Equal(t, "/pdn/calc/business", entries[1].Endpoint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "", 0)

	mock.ExpectLRange("pdn:audit:req-1", 0, -1).SetErr(assert.AnError)

	_, err := store.ByRequestID(context.Background(), "req-1")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestOpen(t *testing.T) {
	store, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, store)

	store, err = Open(Options{Backend: "file", File: filepath.Join(t.TempDir(), "a.log")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	assert.NoError(t, store.Close())

	_, err = Open(Options{Backend: "redis"})
	assert.Error(t, err)

	_, err = Open(Options{Backend: "kafka"})
	assert.Error(t, err)
}
