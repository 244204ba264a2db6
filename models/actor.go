package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/wren-social/wren/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// An Actor is a participant in the federation graph, local or remote.
// Local and remote actors share one identity space; a Relationship or
// Reaction edge references an actor ID regardless of locality.
//
// Remote actors are created lazily the first time the Explorer resolves
// their URI, and are refreshed, never purged.
type Actor struct {
	ID             snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt      time.Time
	Type           ActorType `gorm:"default:'Person';not null"`
	URI            string    `gorm:"uniqueIndex;size:255;not null"`
	Name           string    `gorm:"size:64;uniqueIndex:idx_actor_name_domain;not null"`
	Domain         string    `gorm:"size:64;uniqueIndex:idx_actor_name_domain;not null"`
	DisplayName    string    `gorm:"size:128;not null"`
	Locked         bool      `gorm:"default:false;not null"`
	Note           string    `gorm:"type:text"`
	Avatar         string    `gorm:"size:255"`
	InboxURI       string    `gorm:"size:255;not null;default:''"`
	SharedInboxURI string    `gorm:"size:255;not null;default:''"`
	// PublicKey is the actor's public key in PEM form. For local actors it
	// is written when the keypair is generated; for remote actors it is
	// cached from their published actor document.
	PublicKey      []byte `gorm:"type:blob"`
	FollowersCount int32  `gorm:"default:0;not null"`
	FollowingCount int32  `gorm:"default:0;not null"`
	StatusesCount  int32  `gorm:"default:0;not null"`
	LastStatusAt   time.Time
}

type ActorType string

func (ActorType) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('Person', 'Application', 'Service', 'Group', 'Organization', 'LocalPerson', 'LocalService')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

func (a *Actor) Acct() string {
	if a.IsLocal() {
		return a.Name
	}
	return fmt.Sprintf("%s@%s", a.Name, a.Domain)
}

// IsLocal indicates whether the actor is hosted by this instance.
func (a *Actor) IsLocal() bool {
	switch a.Type {
	case "LocalPerson", "LocalService":
		return true
	default:
		return false
	}
}

// IsRemote indicates whether the actor is not local to the instance.
func (a *Actor) IsRemote() bool {
	return !a.IsLocal()
}

// ActorType returns the ActivityStreams type of the actor.
func (a *Actor) ActorType() string {
	switch a.Type {
	case "LocalPerson":
		return "Person"
	case "LocalService":
		return "Service"
	default:
		return string(a.Type)
	}
}

// Inbox returns the inbox deliveries for this actor should be posted to,
// preferring the instance wide shared inbox when one is advertised.
func (a *Actor) Inbox() string {
	if a.SharedInboxURI != "" {
		return a.SharedInboxURI
	}
	return a.InboxURI
}

// PublicKeyID returns the identifier the actor's public key is published
// under.
func (a *Actor) PublicKeyID() string {
	return fmt.Sprintf("%s#public-key", a.URI)
}

func (a *Actor) URL() string {
	return fmt.Sprintf("https://%s/@%s", a.Domain, a.Name)
}

type Actors struct {
	db *gorm.DB
}

func NewActors(db *gorm.DB) *Actors {
	return &Actors{db: db}
}

// Find finds an actor by its name and domain.
func (a *Actors) Find(name, domain string) (*Actor, error) {
	var actor Actor
	return &actor, a.db.Where("name = ? AND domain = ?", name, domain).Take(&actor).Error
}

// FindByURI returns an actor by its URI if it exists locally.
func (a *Actors) FindByURI(uri string) (*Actor, error) {
	// use find to avoid record not found error in case of empty result
	var actors []Actor
	if err := a.db.Where(&Actor{URI: uri}).Find(&actors).Error; err != nil {
		return nil, err
	}
	if len(actors) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &actors[0], nil
}

// FindOrCreate finds an actor by its URI, or creates it with createFn if
// it doesn't exist. Creation is an idempotent upsert keyed on the URI, so
// two concurrent resolutions of the same actor settle on one row.
func (a *Actors) FindOrCreate(uri string, createFn func(string) (*Actor, error)) (*Actor, error) {
	actor, err := a.FindByURI(uri)
	if err == nil {
		// found cached actor
		return actor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	actor, err = createFn(uri)
	if err != nil {
		return nil, err
	}
	if err := a.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uri"}},
		DoNothing: true,
	}).Create(actor).Error; err != nil {
		return nil, err
	}
	// re-read so the caller sees the surviving row on conflict
	return a.FindByURI(uri)
}

// Refresh schedules a refresh of an actor's data.
func (a *Actors) Refresh(actor *Actor) error {
	db := a.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"created_at",
			"updated_at",
			"attempts", // resets the attempts counter
		}),
	})
	return db.Create(&ActorRefreshRequest{ActorID: actor.ID}).Error
}

// An ActorRefreshRequest records a request to refresh an actor's profile
// from its origin server. Requests are processed by the
// ActorRefreshProcessor in the background.
type ActorRefreshRequest struct {
	Request

	ActorID snowflake.ID `gorm:"uniqueIndex;not null;"`
	Actor   *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
}
