package activitypub

import (
	stdcrypto "crypto"
	"net/http"
	"strings"
	"time"

	"github.com/wren-social/wren/internal/cache"
	"github.com/wren-social/wren/models"
	"gorm.io/gorm"
)

// Env is the per-request environment handlers operate on.
type Env struct {
	DB *gorm.DB

	// Cache holds resolved actor URIs and negative webfinger results.
	// Shared between requests, empty at process start.
	Cache cache.Cache
}

// GetKey resolves the public key for the given keyId, fetching and
// caching the owning actor if it is not already known locally.
func (e *Env) GetKey(keyID string) (stdcrypto.PublicKey, error) {

	// defer resolving the admin account until we need it to fetch the
	// remote actor
	fetch := func(uri string) (*models.Actor, error) {
		admin, err := models.NewInstances(e.DB).AdminAccount()
		if err != nil {
			return nil, err
		}
		explorer := NewExplorer(e.DB, admin, e.Cache)
		return explorer.FetchActor(e.DB.Statement.Context, uri)
	}

	actor, err := models.NewActors(e.DB).FindOrCreate(trimKeyId(keyID), fetch)
	if err != nil {
		return nil, err
	}
	return NewKeys(e.DB).PublicKeyOf(actor)
}

// trimKeyId removes the #public-key fragment from the key id, leaving
// the owning actor's URI.
func trimKeyId(id string) string {
	if i := strings.Index(id, "#"); i != -1 {
		return id[:i]
	}
	return id
}

func boolFromAny(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}

func mapFromAny(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func anyToSlice(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	default:
		return nil
	}
}

func timeFromAnyOrNow(v any) time.Time {
	switch v := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	case time.Time:
		return v
	}
	return time.Now()
}

// parseBool parses a boolean value from a request parameter.
// If the parameter is not present, or cannot be parsed, it returns false.
func parseBool(r *http.Request, key string) bool {
	switch r.URL.Query().Get(key) {
	case "true", "1":
		return true
	default:
		return false
	}
}
