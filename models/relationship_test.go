package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFollowIsIdempotent(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	alice := MockActor(t, db, "alice", "example.com", WithType("LocalPerson"))
	bob := MockActor(t, db, "bob", "remote.example")

	_, err := NewRelationships(db).Follow(bob, alice)
	require.NoError(err)
	_, err = NewRelationships(db).Follow(bob, alice)
	require.NoError(err)

	var count int64
	require.NoError(db.Model(&Relationship{}).Where("actor_id = ? and target_id = ? and following = true", bob.ID, alice.ID).Count(&count).Error)
	require.EqualValues(1, count)

	var target Actor
	require.NoError(db.Take(&target, alice.ID).Error)
	require.EqualValues(1, target.FollowersCount)
}

func TestUnfollowMissingEdgeIsNoop(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	alice := MockActor(t, db, "alice", "example.com", WithType("LocalPerson"))
	bob := MockActor(t, db, "bob", "remote.example")

	rel, err := NewRelationships(db).Unfollow(bob, alice)
	require.NoError(err)
	require.False(rel.Following)
}

func TestFollowersPaging(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	alice := MockActor(t, db, "alice", "example.com", WithType("LocalPerson"))
	rels := NewRelationships(db)
	for _, name := range []string{"bob", "carol", "dave"} {
		follower := MockActor(t, db, name, "remote.example")
		_, err := rels.Follow(follower, alice)
		require.NoError(err)
	}

	followers, err := rels.Followers(alice, 2, 0)
	require.NoError(err)
	require.Len(followers, 2)

	rest, err := rels.Followers(alice, 2, 2)
	require.NoError(err)
	require.Len(rest, 1)

	exists, err := rels.Exists(followers[0], alice)
	require.NoError(err)
	require.True(exists)
}
