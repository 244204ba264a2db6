package activitypub

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wren-social/wren/internal/httpx"
	"github.com/wren-social/wren/internal/to"
	"github.com/wren-social/wren/models"
)

// activityMediaTypes are the Accept media types an actor document is
// served for. Anything else gets 406; the HTML profile is someone
// else's job.
var activityMediaTypes = []string{
	"application/activity+json",
	"application/ld+json",
	"application/json",
}

func acceptsActivityJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.Split(part, ";")[0])
		for _, want := range activityMediaTypes {
			if mediaType == want {
				return true
			}
		}
	}
	return false
}

// UsersShow serves GET /users/{username}: the actor document, only
// under activity JSON content negotiation.
func UsersShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	if !acceptsActivityJSON(r) {
		return httpx.Error(http.StatusNotAcceptable, fmt.Errorf("no acceptable representation for %q", r.Header.Get("Accept")))
	}

	actor, err := env.localActor(r)
	if err != nil {
		return err
	}
	return to.ActivityJSON(w, actorDocument(actor))
}

// actorDocument renders the public actor document federation peers
// fetch.
func actorDocument(actor *models.Actor) map[string]any {
	doc := map[string]any{
		"@context": []any{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                        actor.URI,
		"type":                      actor.ActorType(),
		"preferredUsername":         actor.Name,
		"name":                      actor.DisplayName,
		"summary":                   actor.Note,
		"url":                       actor.URL(),
		"inbox":                     actor.URI + "/inbox",
		"outbox":                    actor.URI + "/outbox",
		"followers":                 actor.URI + "/followers",
		"following":                 actor.URI + "/following",
		"liked":                     actor.URI + "/liked",
		"manuallyApprovesFollowers": actor.Locked,
		"endpoints": map[string]any{
			"sharedInbox": fmt.Sprintf("https://%s/inbox", actor.Domain),
		},
		"publicKey": map[string]any{
			"id":           actor.PublicKeyID(),
			"owner":        actor.URI,
			"publicKeyPem": string(actor.PublicKey),
		},
	}
	if actor.Avatar != "" {
		doc["icon"] = map[string]any{
			"type": "Image",
			"url":  actor.Avatar,
		}
	}
	return doc
}

// localActor resolves the {username} URL parameter against this
// instance's actors.
func (e *Env) localActor(r *http.Request) (*models.Actor, error) {
	username := chi.URLParam(r, "username")
	actor, err := models.NewActors(e.DB).Find(username, r.Host)
	if err != nil {
		return nil, httpx.Error(http.StatusNotFound, fmt.Errorf("actor %q not found", username))
	}
	return actor, nil
}
