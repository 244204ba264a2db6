package activitypub

import (
	"fmt"
	"net/http"

	"github.com/wren-social/wren/internal/algorithms"
	"github.com/wren-social/wren/internal/to"
	"github.com/wren-social/wren/models"
)

// Outbox serves GET /users/{username}/outbox: the actor's statuses as
// an ordered collection of Create and Announce items.
func Outbox(env *Env, w http.ResponseWriter, r *http.Request) error {
	switch parseBool(r, "page") {
	case true:
		return outboxShow(env, w, r)
	default:
		return outboxIndex(env, w, r)
	}
}

func outboxIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	actor, err := env.localActor(r)
	if err != nil {
		return err
	}
	self := fmt.Sprintf("https://%s%s", r.Host, r.URL.Path)
	return to.ActivityJSON(w, map[string]any{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         self,
		"type":       "OrderedCollection",
		"totalItems": actor.StatusesCount,
		"first":      self + "?page=true",
	})
}

func outboxShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	actor, err := env.localActor(r)
	if err != nil {
		return err
	}
	var statuses []*models.Status
	query := env.DB.Where("actor_id = ?", actor.ID).Order("id desc").Limit(collectionPageSize)
	if err := query.Preload("Actor").Preload("Reblog").Preload("Reblog.Actor").Preload("Mentions.Actor").Find(&statuses).Error; err != nil {
		return err
	}

	admin, err := models.NewInstances(env.DB).AdminAccount()
	if err != nil {
		return err
	}
	codec := NewCodec(env.DB, NewExplorer(env.DB, admin, env.Cache))

	self := fmt.Sprintf("https://%s%s", r.Host, r.URL.Path)
	return to.ActivityJSON(w, map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           self + "?page=true",
		"type":         "OrderedCollectionPage",
		"partOf":       self,
		"orderedItems": algorithms.Map(statuses, codec.statusToItem),
	})
}

// statusToItem renders one status as its outbox activity.
func (c *Codec) statusToItem(s *models.Status) any {
	if s.ReblogID != nil {
		item := Envelope(TypeAnnounce, s.URI, s.Actor.URI, s.Reblog.URI)
		delete(item, "@context")
		return item
	}
	item := Envelope(TypeCreate, s.URI+"/activity", s.Actor.URI, c.StatusToObject(s))
	delete(item, "@context")
	item["published"] = s.ID.ToTime().UTC().Format("2006-01-02T15:04:05Z")
	return item
}
