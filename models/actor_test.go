package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wren-social/wren/internal/snowflake"
)

func TestActorFindOrCreateIsIdempotent(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	actors := NewActors(db)
	uri := "https://remote.example/users/bob"
	createFn := func(string) (*Actor, error) {
		return &Actor{
			ID:     snowflake.Now(),
			URI:    uri,
			Name:   "bob",
			Domain: "remote.example",
			Type:   "Person",
		}, nil
	}

	first, err := actors.FindOrCreate(uri, createFn)
	require.NoError(err)
	second, err := actors.FindOrCreate(uri, createFn)
	require.NoError(err)
	require.Equal(first.ID, second.ID)

	var count int64
	require.NoError(db.Model(&Actor{}).Where("uri = ?", uri).Count(&count).Error)
	require.EqualValues(1, count)
}

func TestActorInboxPrefersShared(t *testing.T) {
	require := require.New(t)

	a := &Actor{
		InboxURI:       "https://remote.example/users/bob/inbox",
		SharedInboxURI: "https://remote.example/inbox",
	}
	require.Equal("https://remote.example/inbox", a.Inbox())

	a.SharedInboxURI = ""
	require.Equal("https://remote.example/users/bob/inbox", a.Inbox())
}
