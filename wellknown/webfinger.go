package wellknown

import (
	"fmt"
	"net/http"

	"github.com/wren-social/wren/activitypub"
	"github.com/wren-social/wren/internal/httpx"
	"github.com/wren-social/wren/internal/to"
	"github.com/wren-social/wren/internal/webfinger"
	"github.com/wren-social/wren/models"
)

// WebfingerShow serves GET /.well-known/webfinger, mapping an
// acct:user@domain resource onto the actor it addresses.
func WebfingerShow(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	acct, err := webfinger.Parse(r.URL.Query().Get("resource"))
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}

	// use the host from the request, not the acct
	actor, err := models.NewActors(env.DB).Find(acct.User, r.Host)
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}

	w.Header().Set("Content-Type", "application/jrd+json")
	return to.JSON(w, map[string]any{
		"subject": acct.String(),
		"aliases": []string{
			actor.URL(),
			actor.URI,
		},
		"links": []map[string]any{
			{
				"rel":  "http://webfinger.net/rel/profile-page",
				"type": "text/html",
				"href": actor.URL(),
			},
			{
				"rel":  "self",
				"type": "application/activity+json",
				"href": actor.URI,
			},
			{
				"rel":      "http://ostatus.org/schema/1.0/subscribe",
				"template": fmt.Sprintf("https://%s/authorize_interaction?uri={uri}", actor.Domain),
			},
		},
	})
}
