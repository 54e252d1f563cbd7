// Package audit records calculation requests and their results with
// personal data masked, and retrieves them by request id.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/pdn-calculator/pkg/constants"
	"github.com/redis/go-redis/v9"
)

// Masked replaces the value of personal data fields.
const Masked = "***masked***"

// Pseudonym replaces client identifiers inside request metadata.
const Pseudonym = "***"

var piiKeys = map[string]struct{}{
	"user":     {},
	"username": {},
	"email":    {},
	"phone":    {},
}

// Entry is one audit record.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id"`
	Endpoint  string                 `json:"endpoint"`
	Payload   map[string]interface{} `json:"payload"`
	Result    interface{}            `json:"result"`
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	ByRequestID(ctx context.Context, requestID string) ([]Entry, error)
	Close() error
}

// Options selects and configures a Store.
type Options struct {
	Backend       string
	File          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	TTL           time.Duration
}

// Open returns the Store selected by opts.Backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", constants.AuditBackendNone:
		return NopStore{}, nil
	case constants.AuditBackendFile:
		path := opts.File
		if path == "" {
			path = constants.DefaultAuditFile
		}
		return NewFileStore(path)
	case constants.AuditBackendRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("audit backend redis requires an address")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		return NewRedisStore(client, opts.KeyPrefix, opts.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend %q", opts.Backend)
	}
}

// NewEntry builds an entry from any JSON-serializable payload and result,
// masking personal data in both on the way in.
func NewEntry(now time.Time, requestID, endpoint string, payload, result interface{}) (Entry, error) {
	m, err := toMap(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode audit payload: %w", err)
	}
	e := Entry{
		Timestamp: now.UTC(),
		RequestID: requestID,
		Endpoint:  endpoint,
		Payload:   Mask(m),
	}
	if result != nil {
		rm, err := toMap(result)
		if err != nil {
			return Entry{}, fmt.Errorf("failed to encode audit result: %w", err)
		}
		e.Result = Mask(rm)
	}
	return e, nil
}

// Mask returns a deep copy of data with personal fields masked at any depth
// and meta.client_id pseudonymized.
func Mask(data map[string]interface{}) map[string]interface{} {
	masked := maskMap(data)
	if meta, ok := masked["meta"].(map[string]interface{}); ok {
		if _, has := meta["client_id"]; has {
			meta["client_id"] = Pseudonym
		}
	}
	return masked
}

func maskMap(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if _, pii := piiKeys[strings.ToLower(k)]; pii {
			out[k] = Masked
			continue
		}
		out[k] = maskValue(v)
	}
	return out
}

func maskValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return maskMap(t)
	case []interface{}:
		items := make([]interface{}, len(t))
		for i, item := range t {
			items[i] = maskValue(item)
		}
		return items
	default:
		return v
	}
}

func toMap(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	return m, nil
}

// NopStore discards entries.
type NopStore struct{}

// Append implements Store.
func (NopStore) Append(context.Context, Entry) error { return nil }

// ByRequestID implements Store.
func (NopStore) ByRequestID(context.Context, string) ([]Entry, error) { return nil, nil }

// Close implements Store.
func (NopStore) Close() error { return nil }
