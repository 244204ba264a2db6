package main

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wren-social/wren/activitypub"
	"github.com/wren-social/wren/internal/cache"
	"github.com/wren-social/wren/models"
)

type FollowCmd struct {
	Actor  string `required:"" help:"actor URI or @user@domain handle to follow"`
	Sender string `required:"" help:"email address of the local account to follow with"`
}

func (f *FollowCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	account, err := models.NewAccounts(db).FindByEmail(f.Sender)
	if err != nil {
		return fmt.Errorf("failed to find sender: %w", err)
	}

	explorer := activitypub.NewExplorer(db, account, cache.New())
	target, err := explorer.Resolve(context.Background(), f.Actor)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", f.Actor, err)
	}

	postman, err := activitypub.NewPostman(db, account, []*models.Actor{target})
	if err != nil {
		return err
	}
	return postman.Follow(context.Background())
}
