package activitypub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wren-social/wren/internal/cache"
	"github.com/wren-social/wren/internal/snowflake"
	"github.com/wren-social/wren/internal/webfinger"
	"github.com/wren-social/wren/models"
	"gorm.io/gorm"
)

const (
	// MaxDepth bounds how many collection pages deep a resolution will
	// follow `next` and nested item links.
	MaxDepth = 8

	// MaxActors bounds the total number of actors one resolution may
	// produce. A remote collection larger than this yields a partial
	// result.
	MaxActors = 256
)

// ErrTruncated marks a partial result: the traversal hit MaxDepth or
// MaxActors and stopped. The actors resolved so far are still returned.
var ErrTruncated = errors.New("collection traversal truncated")

const (
	actorCacheTTL    = 15 * time.Minute
	negativeCacheTTL = 5 * time.Minute
)

// Explorer resolves actor identifiers into local actor records. An
// identifier may be a canonical actor URI, a webfinger handle
// (user@domain, with or without a leading @), or an ordered collection
// of actors, in which case every member is resolved.
//
// Resolution is local-first: the positive cache, then the local
// database, then this node's own actor URI space, and only then a signed
// remote fetch. Remote actors found this way are persisted as a caching
// side effect; discovery is an idempotent upsert, not a pure query.
type Explorer struct {
	db     *gorm.DB
	signAs *models.Account
	cache  cache.Cache
}

func NewExplorer(db *gorm.DB, signAs *models.Account, c cache.Cache) *Explorer {
	return &Explorer{
		db:     db,
		signAs: signAs,
		cache:  c,
	}
}

// Resolve resolves identifier to a single actor. When the identifier
// names a collection the first member wins. Fails with NotFoundError if
// no actor can be produced.
func (e *Explorer) Resolve(ctx context.Context, identifier string) (*models.Actor, error) {
	actors, err := e.ResolveAll(ctx, identifier)
	if err != nil && !errors.Is(err, ErrTruncated) {
		return nil, err
	}
	if len(actors) == 0 {
		return nil, &NotFoundError{Resource: "actor " + identifier}
	}
	return actors[0], nil
}

// ResolveAll resolves identifier to every actor it names. Hitting
// MaxDepth or MaxActors returns the actors found so far together with
// ErrTruncated.
func (e *Explorer) ResolveAll(ctx context.Context, identifier string) ([]*models.Actor, error) {
	uri, err := e.normalize(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if actor, err := e.resolveLocal(uri); err == nil {
		return []*models.Actor{actor}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return e.resolveRemote(ctx, uri)
}

// normalize turns a webfinger handle into an actor URI; anything else
// passes through untouched. Failed webfinger lookups are negatively
// cached so a flood of mentions of a dead account does not hammer its
// host.
func (e *Explorer) normalize(ctx context.Context, identifier string) (string, error) {
	if !webfinger.IsHandle(identifier) {
		return identifier, nil
	}
	acct, err := webfinger.Parse(identifier)
	if err != nil {
		return "", NewValidationError("malformed handle %q: %v", identifier, err)
	}

	key := "webfinger:" + acct.String()
	if _, hit := e.cache.Get(key); hit {
		return "", &NotFoundError{Resource: "actor " + identifier}
	}
	wf, err := acct.Fetch(ctx)
	if err != nil {
		e.cache.Set(key, err.Error(), negativeCacheTTL)
		return "", &NotFoundError{Resource: "actor " + identifier, Err: err}
	}
	uri, err := wf.ActivityPub()
	if err != nil {
		e.cache.Set(key, err.Error(), negativeCacheTTL)
		return "", &NotFoundError{Resource: "actor " + identifier, Err: err}
	}
	return uri, nil
}

// resolveLocal tries the positive cache, the actor table, and this
// node's own /users/ URI space, in that order.
func (e *Explorer) resolveLocal(uri string) (*models.Actor, error) {
	if v, hit := e.cache.Get("actor:" + uri); hit {
		if actor, ok := v.(*models.Actor); ok {
			return actor, nil
		}
	}

	actors := models.NewActors(e.db)
	actor, err := actors.FindByURI(uri)
	if err == nil {
		e.cache.Set("actor:"+uri, actor, actorCacheTTL)
		return actor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// the URI may be one of our own actors that has no row cached under
	// that exact string, /users/{name} on our domain
	if name, ok := e.localName(uri); ok {
		actor, err := actors.Find(name, e.signAs.Domain())
		if err == nil {
			e.cache.Set("actor:"+uri, actor, actorCacheTTL)
		}
		return actor, err
	}
	return nil, gorm.ErrRecordNotFound
}

// localName reports whether uri lies in this node's actor URI space and
// returns the user name it addresses.
func (e *Explorer) localName(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Host != e.signAs.Domain() {
		return "", false
	}
	name, found := strings.CutPrefix(u.Path, "/users/")
	if !found || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

type workItem struct {
	uri   string
	depth int
}

// resolveRemote fetches uri and walks whatever it finds. Single actor
// documents resolve directly; ordered collections are traversed over
// their orderedItems and next links with an explicit worklist so a
// hostile collection cannot recurse unboundedly.
func (e *Explorer) resolveRemote(ctx context.Context, uri string) ([]*models.Actor, error) {
	client, err := NewClientForAccount(e.db, e.signAs)
	if err != nil {
		return nil, err
	}

	var found []*models.Actor
	seen := map[string]bool{}
	queue := []workItem{{uri: uri}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if seen[item.uri] {
			continue
		}
		seen[item.uri] = true
		if item.depth > MaxDepth {
			return found, ErrTruncated
		}

		obj, err := client.Get(ctx, item.uri)
		if err != nil {
			if len(queue) == 0 && len(found) == 0 {
				return nil, &NotFoundError{Resource: "actor " + uri, Err: err}
			}
			continue
		}

		if items := anyToSlice(obj["orderedItems"]); items != nil || stringFromAny(obj["next"]) != "" {
			for _, member := range items {
				memberURI := stringFromAny(member)
				if memberURI == "" {
					memberURI = stringFromAny(mapFromAny(member)["id"])
				}
				if memberURI != "" {
					queue = append(queue, workItem{uri: memberURI, depth: item.depth + 1})
				}
			}
			if next := stringFromAny(obj["next"]); next != "" {
				queue = append(queue, workItem{uri: next, depth: item.depth + 1})
			}
			continue
		}

		actor, err := e.upsert(obj)
		if err != nil {
			if len(queue) == 0 && len(found) == 0 {
				return nil, err
			}
			continue
		}
		found = append(found, actor)
		if len(found) >= MaxActors {
			return found, ErrTruncated
		}
	}

	if len(found) == 0 {
		return nil, &NotFoundError{Resource: "actor " + uri}
	}
	return found, nil
}

// upsert validates a fetched actor document and persists it, keyed on
// its canonical id. Re-resolving an already known actor returns the same
// surrogate row.
func (e *Explorer) upsert(obj map[string]any) (*models.Actor, error) {
	actor, err := actorFromDocument(obj)
	if err != nil {
		return nil, err
	}
	persisted, err := models.NewActors(e.db).FindOrCreate(actor.URI, func(string) (*models.Actor, error) {
		return actor, nil
	})
	if err != nil {
		return nil, err
	}
	e.cache.Set("actor:"+persisted.URI, persisted, actorCacheTTL)
	return persisted, nil
}

// FetchActor fetches a single remote actor document without touching the
// database; it backs FindOrCreate callbacks and profile refreshes.
func (e *Explorer) FetchActor(ctx context.Context, uri string) (*models.Actor, error) {
	fmt.Println("Explorer.FetchActor:", uri)
	client, err := NewClientForAccount(e.db, e.signAs)
	if err != nil {
		return nil, err
	}
	obj, err := client.Get(ctx, uri)
	if err != nil {
		return nil, &NotFoundError{Resource: "actor " + uri, Err: err}
	}
	return actorFromDocument(obj)
}

// actorFromDocument validates the fetched document and maps it onto an
// actor row. The document must carry at minimum an id, a preferred
// username, an inbox and a public key, anything less is not a usable
// federation peer.
func actorFromDocument(obj map[string]any) (*models.Actor, error) {
	id := stringFromAny(obj["id"])
	name := stringFromAny(obj["preferredUsername"])
	inbox := stringFromAny(obj["inbox"])
	publicKey := stringFromAny(mapFromAny(obj["publicKey"])["publicKeyPem"])
	switch {
	case id == "":
		return nil, NewValidationError("actor document missing id")
	case name == "":
		return nil, NewValidationError("actor document missing preferredUsername")
	case inbox == "":
		return nil, NewValidationError("actor document missing inbox")
	case publicKey == "":
		return nil, NewValidationError("actor document missing publicKey.publicKeyPem")
	}

	u, err := url.Parse(id)
	if err != nil {
		return nil, NewValidationError("actor document id %q: %v", id, err)
	}

	typ := models.ActorType(stringFromAny(obj["type"]))
	switch typ {
	case "Person", "Application", "Service", "Group", "Organization":
	default:
		typ = "Person"
	}

	return &models.Actor{
		ID:             snowflake.TimeToID(timeFromAnyOrNow(obj["published"])),
		Type:           typ,
		URI:            id,
		Name:           name,
		Domain:         u.Host,
		DisplayName:    stringFromAny(obj["name"]),
		Locked:         boolFromAny(obj["manuallyApprovesFollowers"]),
		Note:           stringFromAny(obj["summary"]),
		Avatar:         stringFromAny(mapFromAny(obj["icon"])["url"]),
		InboxURI:       inbox,
		SharedInboxURI: stringFromAny(mapFromAny(obj["endpoints"])["sharedInbox"]),
		PublicKey:      []byte(publicKey),
		LastStatusAt:   time.Now(),
	}, nil
}
