package activitypub

import (
	"fmt"
	"net/http"

	"github.com/wren-social/wren/internal/algorithms"
	"github.com/wren-social/wren/internal/httpx"
	"github.com/wren-social/wren/internal/to"
	"github.com/wren-social/wren/models"
)

// collectionPageSize is how many members one ordered collection page
// carries.
const collectionPageSize = 50

type collectionParams struct {
	Page int `schema:"page"`
}

// Followers serves GET /users/{username}/followers.
func Followers(env *Env, w http.ResponseWriter, r *http.Request) error {
	return collection(env, w, r, func(actor *models.Actor) int64 {
		return int64(actor.FollowersCount)
	}, models.NewRelationships(env.DB).Followers)
}

// Following serves GET /users/{username}/following.
func Following(env *Env, w http.ResponseWriter, r *http.Request) error {
	return collection(env, w, r, func(actor *models.Actor) int64 {
		return int64(actor.FollowingCount)
	}, models.NewRelationships(env.DB).Following)
}

// collection renders a paged ordered collection. Page 0 is the stub
// carrying the total and a first link; page 1 and up carry the member
// URIs.
func collection(env *Env, w http.ResponseWriter, r *http.Request, count func(*models.Actor) int64, members func(*models.Actor, int, int) ([]*models.Actor, error)) error {
	actor, err := env.localActor(r)
	if err != nil {
		return err
	}

	var params collectionParams
	if err := httpx.Params(r, &params); err != nil {
		return err
	}

	self := fmt.Sprintf("https://%s%s", r.Host, r.URL.Path)
	if params.Page < 1 {
		return to.ActivityJSON(w, map[string]any{
			"@context":   "https://www.w3.org/ns/activitystreams",
			"id":         self,
			"type":       "OrderedCollection",
			"totalItems": count(actor),
			"first":      self + "?page=1",
		})
	}

	page, err := members(actor, collectionPageSize, (params.Page-1)*collectionPageSize)
	if err != nil {
		return err
	}
	resp := map[string]any{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         fmt.Sprintf("%s?page=%d", self, params.Page),
		"type":       "OrderedCollectionPage",
		"partOf":     self,
		"totalItems": count(actor),
		"orderedItems": algorithms.Map(page, func(a *models.Actor) any {
			return a.URI
		}),
	}
	if len(page) == collectionPageSize {
		resp["next"] = fmt.Sprintf("%s?page=%d", self, params.Page+1)
	}
	if params.Page > 1 {
		resp["prev"] = fmt.Sprintf("%s?page=%d", self, params.Page-1)
	}
	return to.ActivityJSON(w, resp)
}
