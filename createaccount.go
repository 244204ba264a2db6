package main

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/wren-social/wren/internal/crypto"
	"github.com/wren-social/wren/internal/snowflake"
	"github.com/wren-social/wren/models"
)

type CreateAccountCmd struct {
	Email    string `required:"" help:"email address of the user to create"`
	Password string `required:"" help:"password of the user to create"`
	Admin    bool   `help:"make the account the instance admin"`
}

func (c *CreateAccountCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	parts := strings.Split(c.Email, "@")
	if len(parts) != 2 {
		return errors.New("invalid email address")
	}
	username := parts[0]
	domain := parts[1]

	instance, err := models.NewInstances(db).ForDomain(domain)
	if err != nil {
		return err
	}

	passwd, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	kp, err := crypto.GenerateRSAKeypair()
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		uri := "https://" + domain + "/users/" + username
		actor := &models.Actor{
			ID:             snowflake.Now(),
			Type:           "LocalPerson",
			URI:            uri,
			Name:           username,
			Domain:         domain,
			DisplayName:    username,
			InboxURI:       uri + "/inbox",
			SharedInboxURI: "https://" + domain + "/inbox",
			PublicKey:      kp.PublicKey,
		}
		if err := tx.Create(actor).Error; err != nil {
			return err
		}

		account := &models.Account{
			ID:                snowflake.Now(),
			InstanceID:        &instance.ID,
			ActorID:           actor.ID,
			Email:             c.Email,
			EncryptedPassword: passwd,
			PrivateKey:        kp.PrivateKey,
		}
		if err := tx.Create(account).Error; err != nil {
			return err
		}

		if c.Admin {
			return tx.Model(instance).Update("admin_id", account.ID).Error
		}
		return nil
	})
}
