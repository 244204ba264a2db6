package models

import (
	"time"

	"github.com/wren-social/wren/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A PendingFollowRequest marks a Follow we have sent that has not yet
// been answered with an Accept. At most one row exists per ordered
// (actor, target) pair. Rows have no automatic expiry; a request that is
// never accepted stays pending until housekeeping removes it.
type PendingFollowRequest struct {
	ActorID   snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Actor     *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	TargetID  snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Target    *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PendingFollows struct {
	db *gorm.DB
}

func NewPendingFollows(db *gorm.DB) *PendingFollows {
	return &PendingFollows{db: db}
}

// Add records a pending follow from actor to target. Adding an existing
// pair refreshes its timestamp; it is never an error.
func (p *PendingFollows) Add(actor, target *Actor) error {
	return p.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at",
		}),
	}).Create(&PendingFollowRequest{
		ActorID:  actor.ID,
		TargetID: target.ID,
	}).Error
}

// Remove deletes the pending follow from actor to target. Removing a
// missing pair is a no-op.
func (p *PendingFollows) Remove(actor, target *Actor) error {
	return p.db.Where("actor_id = ? and target_id = ?", actor.ID, target.ID).
		Delete(&PendingFollowRequest{}).Error
}

// Exists reports whether a pending follow from actor to target is
// outstanding.
func (p *PendingFollows) Exists(actor, target *Actor) (bool, error) {
	var count int64
	err := p.db.Model(&PendingFollowRequest{}).
		Where("actor_id = ? and target_id = ?", actor.ID, target.ID).
		Count(&count).Error
	return count > 0, err
}
