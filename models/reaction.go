package models

import (
	"errors"

	"github.com/wren-social/wren/internal/snowflake"
	"gorm.io/gorm"
)

// Reaction represents an actor's reaction to a status. A favourite maps
// onto an inbound Like activity.
type Reaction struct {
	StatusID   snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Status     *Status      `gorm:"constraint:OnDelete:CASCADE;<-:false"`
	ActorID    snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Actor      *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false"`
	Favourited bool         `gorm:"not null;default:false"`
}

func (r *Reaction) AfterSave(tx *gorm.DB) error {
	return forEach(tx, r.updateStatusCount)
}

// updateStatusCount updates the favourites_count field on the status.
func (r *Reaction) updateStatusCount(tx *gorm.DB) error {
	status := &Status{ID: r.StatusID}
	favouritesCount := tx.Select("COUNT(*)").Where("status_id = ? and favourited = true", r.StatusID).Table("reactions")
	return tx.Model(status).UpdateColumns(map[string]interface{}{
		"favourites_count": favouritesCount,
	}).Error
}

type Reactions struct {
	db *gorm.DB
}

func NewReactions(db *gorm.DB) *Reactions {
	return &Reactions{db: db}
}

// Favourite records that actor favourited status. Favouriting a status
// twice is a no-op success.
func (r *Reactions) Favourite(status *Status, actor *Actor) (*Reaction, error) {
	reaction, err := r.findOrCreate(status, actor)
	if err != nil {
		return nil, err
	}
	reaction.Favourited = true
	return reaction, r.db.Save(reaction).Error
}

// Unfavourite removes actor's favourite of status. Removing a favourite
// that does not exist is a no-op success.
func (r *Reactions) Unfavourite(status *Status, actor *Actor) (*Reaction, error) {
	reaction, err := r.findOrCreate(status, actor)
	if err != nil {
		return nil, err
	}
	reaction.Favourited = false
	return reaction, r.db.Save(reaction).Error
}

func (r *Reactions) findOrCreate(status *Status, actor *Actor) (*Reaction, error) {
	var reaction Reaction
	err := r.db.FirstOrCreate(&reaction, Reaction{
		StatusID: status.ID,
		ActorID:  actor.ID,
	}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &reaction, err
}
