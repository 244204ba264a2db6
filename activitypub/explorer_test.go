package activitypub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wren-social/wren/internal/cache"
	"github.com/wren-social/wren/internal/to"
)

// actorDoc serves a minimal valid actor document for the given id.
func actorDoc(id, name string) map[string]any {
	return map[string]any{
		"id":                id,
		"type":              "Person",
		"preferredUsername": name,
		"inbox":             id + "/inbox",
		"publicKey": map[string]any{
			"id":           id + "#public-key",
			"owner":        id,
			"publicKeyPem": "-----BEGIN PUBLIC KEY-----\nmock\n-----END PUBLIC KEY-----\n",
		},
	}
}

func TestExplorerResolveIsIdempotent(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)
	admin := mockInstance(t, db, "local.example")

	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Content-Type", "application/activity+json")
		to.JSON(w, actorDoc("http://"+r.Host+"/users/bob", "bob"))
	}))
	defer server.Close()

	explorer := NewExplorer(db, admin, cache.New())
	uri := server.URL + "/users/bob"

	first, err := explorer.Resolve(context.Background(), uri)
	require.NoError(err)
	require.Equal("bob", first.Name)
	require.Equal(uri, first.URI)
	require.Equal(uri+"/inbox", first.InboxURI)

	second, err := explorer.Resolve(context.Background(), uri)
	require.NoError(err)
	require.Equal(first.ID, second.ID)
	require.Equal(1, fetches)
}

func TestExplorerRejectsIncompleteActorDocument(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)
	admin := mockInstance(t, db, "local.example")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := actorDoc("http://"+r.Host+"/users/bob", "bob")
		delete(doc, "inbox")
		w.Header().Set("Content-Type", "application/activity+json")
		to.JSON(w, doc)
	}))
	defer server.Close()

	explorer := NewExplorer(db, admin, cache.New())
	_, err := explorer.Resolve(context.Background(), server.URL+"/users/bob")
	var verr *ValidationError
	require.ErrorAs(err, &verr)
}

func TestExplorerResolvesLocalActorsWithoutFetching(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)
	admin := mockInstance(t, db, "local.example")
	alice := mockAccount(t, db, "alice", "local.example")

	explorer := NewExplorer(db, admin, cache.New())
	actor, err := explorer.Resolve(context.Background(), alice.Actor.URI)
	require.NoError(err)
	require.Equal(alice.ActorID, actor.ID)
}

func TestExplorerTraversesOrderedCollection(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)
	admin := mockInstance(t, db, "local.example")

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/collections/liked", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/activity+json")
		to.JSON(w, map[string]any{
			"id":   server.URL + "/collections/liked",
			"type": "OrderedCollection",
			"orderedItems": []any{
				server.URL + "/users/bob",
			},
			"next": server.URL + "/collections/liked/2",
		})
	})
	mux.HandleFunc("/collections/liked/2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/activity+json")
		to.JSON(w, map[string]any{
			"id":   server.URL + "/collections/liked/2",
			"type": "OrderedCollectionPage",
			"orderedItems": []any{
				map[string]any{"id": server.URL + "/users/carol"},
			},
		})
	})
	for _, name := range []string{"bob", "carol"} {
		name := name
		mux.HandleFunc("/users/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/activity+json")
			to.JSON(w, actorDoc(server.URL+"/users/"+name, name))
		})
	}

	explorer := NewExplorer(db, admin, cache.New())
	actors, err := explorer.ResolveAll(context.Background(), server.URL+"/collections/liked")
	require.NoError(err)
	require.Len(actors, 2)
	require.Equal("bob", actors[0].Name)
	require.Equal("carol", actors[1].Name)
}

func TestExplorerBoundsCollectionDepth(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)
	admin := mockInstance(t, db, "local.example")

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	// an endless chain of next pages
	mux.HandleFunc("/pages/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/pages/%d", &n)
		w.Header().Set("Content-Type", "application/activity+json")
		to.JSON(w, map[string]any{
			"id":           fmt.Sprintf("%s/pages/%d", server.URL, n),
			"type":         "OrderedCollectionPage",
			"orderedItems": []any{},
			"next":         fmt.Sprintf("%s/pages/%d", server.URL, n+1),
		})
	})

	explorer := NewExplorer(db, admin, cache.New())
	_, err := explorer.ResolveAll(context.Background(), server.URL+"/pages/0")
	require.ErrorIs(err, ErrTruncated)
}

func TestExplorerNegativeWebfingerCache(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)
	admin := mockInstance(t, db, "local.example")

	c := cache.New()
	c.Set("webfinger:acct:ghost@gone.example", "no such host", negativeCacheTTL)

	explorer := NewExplorer(db, admin, c)
	_, err := explorer.Resolve(context.Background(), "ghost@gone.example")
	var nerr *NotFoundError
	require.ErrorAs(err, &nerr)
}

func TestExplorerUnresolvableFailsWithNotFound(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)
	admin := mockInstance(t, db, "local.example")

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	explorer := NewExplorer(db, admin, cache.New())
	_, err := explorer.Resolve(context.Background(), server.URL+"/users/nobody")
	var nerr *NotFoundError
	require.ErrorAs(err, &nerr)
}
