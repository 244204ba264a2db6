package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-json-experiment/json"
	"gorm.io/gorm"

	"github.com/wren-social/wren/activitypub"
	"github.com/wren-social/wren/models"
)

type FetchActorCmd struct {
	Account string `required:"" help:"email address of the account to sign the request with"`
	Actor   string `required:"" help:"URI of the actor to fetch"`
}

func (f *FetchActorCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	account, err := models.NewAccounts(db).FindByEmail(f.Account)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}

	client, err := activitypub.NewClientForAccount(db, account)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	obj, err := client.Get(context.Background(), f.Actor)
	if err != nil {
		return fmt.Errorf("failed to fetch actor: %w", err)
	}
	return json.MarshalOptions{}.MarshalFull(json.EncodeOptions{
		Indent: "\t",
	}, os.Stdout, obj)
}
