package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStatusFindOrCreate(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	bob := MockActor(t, db, "bob", "remote.example")
	status := MockStatus(t, db, bob, "hello world")

	statuses := NewStatuses(db)
	found, err := statuses.FindByURI(status.URI)
	require.NoError(err)
	require.Equal(status.ID, found.ID)

	created, err := statuses.FindOrCreate(status.URI, func(string) (*Status, error) {
		t.Fatal("createFn should not be called for a cached status")
		return nil, nil
	})
	require.NoError(err)
	require.Equal(status.ID, created.ID)
}

func TestStatusCountHooks(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	bob := MockActor(t, db, "bob", "remote.example")
	MockStatus(t, db, bob, "one")
	MockStatus(t, db, bob, "two")

	var actor Actor
	require.NoError(db.Take(&actor, bob.ID).Error)
	require.EqualValues(2, actor.StatusesCount)
}

func TestDeleteAsRequiresAuthor(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	bob := MockActor(t, db, "bob", "remote.example")
	eve := MockActor(t, db, "eve", "other.example")
	status := MockStatus(t, db, bob, "mine")

	statuses := NewStatuses(db)
	err := statuses.DeleteAs(eve, status)
	require.ErrorIs(err, ErrNotAuthorized)

	// still present
	_, err = statuses.FindByURI(status.URI)
	require.NoError(err)

	require.NoError(statuses.DeleteAs(bob, status))
	_, err = statuses.FindByURI(status.URI)
	require.ErrorIs(err, gorm.ErrRecordNotFound)
}
