package models

import (
	"errors"

	"github.com/wren-social/wren/internal/snowflake"
	"gorm.io/gorm"
)

// A Relationship is the follow edge between two actors. One row exists
// per ordered (actor, target) pair; Following is set while the actor
// subscribes to the target.
type Relationship struct {
	ActorID    snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Actor      *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	TargetID   snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Target     *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	Following  bool         `gorm:"not null;default:false"`
	FollowedBy bool         `gorm:"not null;default:false"`
}

// AfterSave updates the followers and following counts for the actor and target.
func (r *Relationship) AfterSave(tx *gorm.DB) error {
	return forEach(tx, r.updateFollowersCount, r.updateFollowingCount)
}

// updateFollowersCount updates the followers count for the target.
func (r *Relationship) updateFollowersCount(tx *gorm.DB) error {
	target := &Actor{ID: r.TargetID}
	followers := tx.Select("COUNT(*)").Where("target_id = ? and following = true", r.TargetID).Table("relationships")
	return tx.Model(target).UpdateColumns(map[string]interface{}{
		"followers_count": followers,
	}).Error
}

// updateFollowingCount updates the following count for the actor.
func (r *Relationship) updateFollowingCount(tx *gorm.DB) error {
	actor := &Actor{ID: r.ActorID}
	following := tx.Select("COUNT(*)").Where("actor_id = ? and following = true", r.ActorID).Table("relationships")
	return tx.Model(actor).UpdateColumns(map[string]interface{}{
		"following_count": following,
	}).Error
}

type Relationships struct {
	db *gorm.DB
}

func NewRelationships(db *gorm.DB) *Relationships {
	return &Relationships{db: db}
}

// Exists reports whether actor currently follows target.
func (r *Relationships) Exists(actor, target *Actor) (bool, error) {
	var rel Relationship
	err := r.db.Take(&rel, "actor_id = ? and target_id = ?", actor.ID, target.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rel.Following, nil
}

// Follow records that actor follows target. Repeating an existing follow
// is a no-op success.
func (r *Relationships) Follow(actor, target *Actor) (*Relationship, error) {
	forward, err := r.findOrCreate(actor, target)
	if err != nil {
		return nil, err
	}
	forward.Following = true
	if err := r.db.Save(forward).Error; err != nil {
		return nil, err
	}
	inverse, err := r.findOrCreate(target, actor)
	if err != nil {
		return nil, err
	}
	inverse.FollowedBy = true
	return forward, r.db.Save(inverse).Error
}

// Unfollow removes the follow edge from actor to target. Cancelling a
// follow that does not exist is a no-op success.
func (r *Relationships) Unfollow(actor, target *Actor) (*Relationship, error) {
	forward, err := r.findOrCreate(actor, target)
	if err != nil {
		return nil, err
	}
	forward.Following = false
	if err := r.db.Save(forward).Error; err != nil {
		return nil, err
	}
	inverse, err := r.findOrCreate(target, actor)
	if err != nil {
		return nil, err
	}
	inverse.FollowedBy = false
	return forward, r.db.Save(inverse).Error
}

// findOrCreate returns the relationship between actor and target,
// creating an empty edge if none exists.
func (r *Relationships) findOrCreate(actor, target *Actor) (*Relationship, error) {
	var rel Relationship
	err := r.db.FirstOrCreate(&rel, Relationship{
		ActorID:  actor.ID,
		TargetID: target.ID,
	}).Error
	return &rel, err
}

// Followers returns the actors following the given actor, most recent
// first, limited and offset for paging.
func (r *Relationships) Followers(actor *Actor, limit, offset int) ([]*Actor, error) {
	var rels []Relationship
	query := r.db.Preload("Actor").Where("target_id = ? and following = true", actor.ID)
	if err := query.Order("actor_id desc").Limit(limit).Offset(offset).Find(&rels).Error; err != nil {
		return nil, err
	}
	followers := make([]*Actor, 0, len(rels))
	for _, rel := range rels {
		followers = append(followers, rel.Actor)
	}
	return followers, nil
}

// Following returns the actors the given actor follows.
func (r *Relationships) Following(actor *Actor, limit, offset int) ([]*Actor, error) {
	var rels []Relationship
	query := r.db.Preload("Target").Where("actor_id = ? and following = true", actor.ID)
	if err := query.Order("target_id desc").Limit(limit).Offset(offset).Find(&rels).Error; err != nil {
		return nil, err
	}
	following := make([]*Actor, 0, len(rels))
	for _, rel := range rels {
		following = append(following, rel.Target)
	}
	return following, nil
}
