package models

import (
	"errors"
	"time"

	"github.com/wren-social/wren/internal/snowflake"
	"gorm.io/gorm"
)

// ErrNotAuthorized is returned when an actor attempts to modify an entity
// it does not own.
var ErrNotAuthorized = errors.New("actor is not authorized")

// A Status is a single note posted by an actor. It may be a reply to
// another status, or a repeat (Announce) of one. Statuses are immutable;
// they are created and deleted, never updated in place.
type Status struct {
	ID               snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt        time.Time    `gorm:"autoUpdateTime:false"`
	ActorID          snowflake.ID
	Actor            *Actor `gorm:"constraint:OnDelete:CASCADE;<-:false;"` // don't update actor on status update
	URI              string `gorm:"uniqueIndex;size:255"`
	URL              string `gorm:"size:255"`
	Note             string `gorm:"type:text"`
	InReplyToID      *snowflake.ID
	InReplyToActorID *snowflake.ID
	Latitude         *float64
	Longitude        *float64
	RepliesCount     int `gorm:"not null;default:0"`
	ReblogsCount     int `gorm:"not null;default:0"`
	FavouritesCount  int `gorm:"not null;default:0"`
	ReblogID         *snowflake.ID
	Reblog           *Status             `gorm:"constraint:OnDelete:CASCADE;<-:false;"` // don't update reblog on status update
	Attachments      []*StatusAttachment `gorm:"constraint:OnDelete:CASCADE;"`
	Mentions         []StatusMention     `gorm:"constraint:OnDelete:CASCADE;"`
}

func (st *Status) AfterCreate(tx *gorm.DB) error {
	return forEach(tx,
		st.updateStatusCount,
		st.updateRepliesCount,
		st.updateReblogsCount,
	)
}

func (st *Status) AfterDelete(tx *gorm.DB) error {
	return forEach(tx, st.updateStatusCount)
}

// updateRepliesCount updates the replies_count field on the parent status.
func (st *Status) updateRepliesCount(tx *gorm.DB) error {
	if st.InReplyToID == nil {
		return nil
	}

	parent := &Status{ID: *st.InReplyToID}
	repliesCount := tx.Select("COUNT(id)").Where("in_reply_to_id = ?", *st.InReplyToID).Table("statuses")
	return tx.Model(parent).UpdateColumns(map[string]interface{}{
		"replies_count": repliesCount,
	}).Error
}

// updateReblogsCount updates the reblogs_count field on the status it reblogs.
func (st *Status) updateReblogsCount(tx *gorm.DB) error {
	if st.ReblogID == nil {
		return nil
	}

	reblog := &Status{ID: *st.ReblogID}
	reblogsCount := tx.Select("COUNT(id)").Where("reblog_id = ?", *st.ReblogID).Table("statuses")
	return tx.Model(reblog).UpdateColumns(map[string]interface{}{
		"reblogs_count": reblogsCount,
	}).Error
}

// updateStatusCount updates the statuses_count and last_status_at fields on the actor.
func (st *Status) updateStatusCount(tx *gorm.DB) error {
	statusesCount := tx.Select("COUNT(id)").Where("actor_id = ?", st.ActorID).Table("statuses")
	createdAt := st.ID.ToTime()
	actor := &Actor{ID: st.ActorID}
	return tx.Model(actor).UpdateColumns(map[string]interface{}{
		"statuses_count": statusesCount,
		"last_status_at": createdAt,
	}).Error
}

// A StatusAttachment is a media file attached to a status. For remote
// statuses the original stays on the origin server; we keep its URL and
// the probed dimensions.
type StatusAttachment struct {
	ID        snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	StatusID  snowflake.ID
	URL       string `gorm:"size:255;not null"`
	MediaType string `gorm:"size:64;not null;default:''"`
	Width     int    `gorm:"not null;default:0"`
	Height    int    `gorm:"not null;default:0"`
	// Thumbnail is a locally generated PNG preview; the original stays
	// on the origin server.
	Thumbnail []byte `gorm:"type:blob"`
}

// A StatusMention records that a status was addressed to an actor, local
// or remote. The set of mentions is the status's explicit recipient set.
type StatusMention struct {
	StatusID snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	ActorID  snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Actor    *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
}

type Statuses struct {
	db *gorm.DB
}

func NewStatuses(db *gorm.DB) *Statuses {
	return &Statuses{db: db}
}

// FindByURI returns a status by its URI if it exists locally.
func (s *Statuses) FindByURI(uri string) (*Status, error) {
	var statuses []Status
	if err := s.db.Preload("Actor").Where(&Status{URI: uri}).Find(&statuses).Error; err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &statuses[0], nil
}

// FindOrCreate finds a status by its URI, or creates it with createFn if
// it doesn't exist.
func (s *Statuses) FindOrCreate(uri string, createFn func(string) (*Status, error)) (*Status, error) {
	status, err := s.FindByURI(uri)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	status, err = createFn(uri)
	if err != nil {
		return nil, err
	}
	return status, s.db.Create(status).Error
}

// DeleteAs deletes the status on behalf of actor. Only the status's
// author may delete it; anyone else gets ErrNotAuthorized.
func (s *Statuses) DeleteAs(actor *Actor, status *Status) error {
	if status.ActorID != actor.ID {
		return ErrNotAuthorized
	}
	return s.db.Delete(status).Error
}
