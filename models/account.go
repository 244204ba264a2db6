package models

import (
	"time"

	"github.com/wren-social/wren/internal/snowflake"
	"gorm.io/gorm"
)

// An Account is a login on this instance. An Account belongs to an Actor;
// the Actor carries the public identity, the Account carries the secrets.
type Account struct {
	ID                snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt         time.Time
	InstanceID        *snowflake.ID
	Instance          *Instance
	ActorID           snowflake.ID
	Actor             *Actor `gorm:"constraint:OnDelete:CASCADE;"`
	Email             string `gorm:"size:64;not null"`
	EncryptedPassword []byte `gorm:"size:60;not null"`
	// PrivateKey is the actor's RSA private key in PEM form. It is
	// generated lazily on first use and never leaves this node.
	PrivateKey []byte
}

func (a *Account) Name() string {
	return a.Actor.Name
}

func (a *Account) Domain() string {
	return a.Actor.Domain
}

type Accounts struct {
	db *gorm.DB
}

func NewAccounts(db *gorm.DB) *Accounts {
	return &Accounts{db: db}
}

// AccountForActor returns the account belonging to the given local actor.
func (a *Accounts) AccountForActor(actor *Actor) (*Account, error) {
	var account Account
	if err := a.db.Joins("Actor").First(&account, "actor_id = ?", actor.ID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail returns the account with the given email address.
func (a *Accounts) FindByEmail(email string) (*Account, error) {
	var account Account
	if err := a.db.Joins("Actor").First(&account, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
