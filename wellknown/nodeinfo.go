package wellknown

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wren-social/wren/activitypub"
	"github.com/wren-social/wren/internal/httpx"
	"github.com/wren-social/wren/internal/to"
	"github.com/wren-social/wren/models"
	"gorm.io/gorm"
)

func NodeInfoIndex(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("cache-control", "max-age=259200, public")
	return to.JSON(w, map[string]any{
		"links": []any{
			map[string]any{
				"rel":  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				"href": fmt.Sprintf("https://%s/nodeinfo/2.0", r.Host),
			},
		},
	})
}

func NodeInfoShow(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	var instance models.Instance
	if err := env.DB.Where("domain = ?", r.Host).First(&instance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpx.Error(http.StatusNotFound, err)
		}
		return err
	}
	if chi.URLParam(r, "version") != "2.0" {
		return httpx.Error(http.StatusNotFound, errors.New("unsupported version: "+chi.URLParam(r, "version")))
	}

	var users int64
	if err := env.DB.Model(&models.Account{}).Where("instance_id = ?", instance.ID).Count(&users).Error; err != nil {
		return err
	}
	var posts int64
	if err := env.DB.Model(&models.Status{}).Joins("JOIN actors ON actors.id = statuses.actor_id AND actors.domain = ?", instance.Domain).Count(&posts).Error; err != nil {
		return err
	}

	// https://github.com/jhass/nodeinfo/blob/main/schemas/2.0/schema.json
	w.Header().Set("cache-control", "max-age=259200, public")
	return to.JSON(w, map[string]any{
		"version": "2.0",
		"software": map[string]any{
			"name":    "wren",
			"version": "0.0.0-devel",
		},
		"protocols": []any{"activitypub"},
		"services": map[string]any{
			"inbound":  []any{},
			"outbound": []any{},
		},
		"usage": map[string]any{
			"users":      map[string]any{"total": users},
			"localPosts": posts,
		},
		"openRegistrations": false,
		"metadata":          map[string]any{},
	})
}
