// Package workers holds the background processors that run beside the
// HTTP server.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/wren-social/wren/activitypub"
	"github.com/wren-social/wren/internal/cache"
	"github.com/wren-social/wren/internal/webfinger"
	"github.com/wren-social/wren/models"
	"gorm.io/gorm"
)

// NewActorRefreshProcessor drains the actor refresh queue, re-fetching
// remote actor documents and updating the rows in place.
func NewActorRefreshProcessor(db *gorm.DB, admin *models.Account) func(ctx context.Context) error {

	return func(ctx context.Context) error {
		fmt.Println("NewActorRefreshProcessor started")
		defer fmt.Println("NewActorRefreshProcessor stopped")

		refresher := &actorRefresher{
			explorer: activitypub.NewExplorer(db, admin, cache.New()),
		}

		db := db.WithContext(ctx)
		for {
			if err := process(db, actorRefreshScope, refresher.processActorRefresh); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(30 * time.Second):
				// continue
			}
		}
	}
}

func actorRefreshScope(db *gorm.DB) *gorm.DB {
	return db.Preload("Actor").Where("attempts < 3")
}

type actorRefresher struct {
	explorer *activitypub.Explorer
}

func (a *actorRefresher) processActorRefresh(db *gorm.DB, request *models.ActorRefreshRequest) error {
	if request.Actor.IsLocal() {
		// ignore local actors
		return nil
	}
	ctx := db.Statement.Context
	acct := webfinger.Acct{
		User: request.Actor.Name,
		Host: request.Actor.Domain,
	}
	fmt.Println("processActorRefresh", acct.String())
	var finger webfinger.Webfinger
	if err := requests.URL(acct.Webfinger()).ToJSON(&finger).Fetch(ctx); err != nil {
		return err
	}
	ap, err := finger.ActivityPub()
	if err != nil {
		return err
	}

	orig := request.Actor
	updated, err := a.explorer.FetchActor(ctx, ap)
	if err != nil {
		return err
	}

	// FetchActor mints a fresh snowflake ID even when the created-at
	// date is unchanged, because of the ID's random component. The
	// surrogate identity is immutable, keep the original.
	updated.ID = orig.ID
	return db.Updates(updated).Error
}
