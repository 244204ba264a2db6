// Package models holds the persistent social graph: actors, accounts,
// statuses, follow and favourite edges, and the federation bookkeeping
// tables that hang off them.
package models

import (
	"time"

	"gorm.io/gorm"
)

// AllTables returns a slice of all tables in the database.
func AllTables() []interface{} {
	return []interface{}{
		&Actor{}, &ActorRefreshRequest{},
		&Account{},
		&Instance{},
		&Reaction{},
		&Relationship{},
		&PendingFollowRequest{},
		&Status{}, &StatusAttachment{}, &StatusMention{},
	}
}

func forEach(tx *gorm.DB, fns ...func(tx *gorm.DB) error) error {
	for _, fn := range fns {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

// A Request records an asynchronous action queued for a background
// processor, together with its retry bookkeeping.
type Request struct {
	ID uint32 `gorm:"primarykey;"`
	// CreatedAt is the time the request was created.
	CreatedAt time.Time
	// UpdatedAt is the time the request was last updated.
	UpdatedAt time.Time
	// Attempts is the number of times the request has been attempted.
	Attempts uint32 `gorm:"not null;default:0"`
	// LastAttempt is the time the request was last attempted.
	LastAttempt time.Time
	// LastResult is the result of the last attempt if it failed.
	LastResult string `gorm:"size:255;not null;default:''"`
}
