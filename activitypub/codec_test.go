package activitypub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wren-social/wren/internal/cache"
	"github.com/wren-social/wren/models"
)

func TestCodecRoundTrip(t *testing.T) {
	require := require.New(t)
	db := setupTestDB(t)

	admin := mockInstance(t, db, "local.example")
	alice := mockAccount(t, db, "alice", "local.example")
	bob := mockActor(t, db, "bob", "remote.example")
	parent := mockStatus(t, db, alice.Actor, "parent")

	original := mockStatus(t, db, bob, "<p>hello</p>")
	original.Actor = bob
	original.InReplyToID = &parent.ID
	original.InReplyToActorID = &parent.ActorID
	require.NoError(db.Save(original).Error)
	require.NoError(db.Create(&models.StatusMention{
		StatusID: original.ID,
		ActorID:  alice.ActorID,
		Actor:    alice.Actor,
	}).Error)
	original.Mentions = []models.StatusMention{{StatusID: original.ID, ActorID: alice.ActorID, Actor: alice.Actor}}

	codec := NewCodec(db, NewExplorer(db, admin, cache.New()))
	obj := codec.StatusToObject(original)
	require.Equal(bob.URI, obj["attributedTo"])
	require.Equal(parent.URI, obj["inReplyTo"])

	decoded, err := codec.ObjectToStatus(context.Background(), obj)
	require.NoError(err)
	require.Equal(bob.URI, decoded.Actor.URI)
	require.Equal("<p>hello</p>", decoded.Note)
	require.Equal(parent.ID, *decoded.InReplyToID)
	require.Len(decoded.Mentions, 1)
	require.Equal(alice.ActorID, decoded.Mentions[0].ActorID)
}

func TestSanitize(t *testing.T) {
	require := require.New(t)

	for _, tc := range []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"allowed tags", `<p>a <strong>b</strong></p>`, `<p>a <strong>b</strong></p>`},
		{"script dropped wholesale", `<p>a<script>alert(1)</script>b</p>`, `<p>ab</p>`},
		{"unknown tag unwrapped", `<marquee>shout</marquee>`, `shout`},
		{"link keeps href only", `<a href="https://x.example" onclick="evil()">x</a>`, `<a href="https://x.example">x</a>`},
		{"style dropped wholesale", `<style>p{}</style>text`, `text`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(tc.want, Sanitize(tc.in))
		})
	}
}
