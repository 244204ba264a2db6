package activitypub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseActivityRequiredFields(t *testing.T) {
	t.Run("missing type", func(t *testing.T) {
		require := require.New(t)
		_, err := ParseActivity(map[string]any{
			"actor":  "https://remote.example/users/bob",
			"object": "https://remote.example/status/1",
		})
		var verr *ValidationError
		require.ErrorAs(err, &verr)
	})
	t.Run("missing actor", func(t *testing.T) {
		require := require.New(t)
		_, err := ParseActivity(map[string]any{
			"type":   "Like",
			"object": "https://remote.example/status/1",
		})
		var verr *ValidationError
		require.ErrorAs(err, &verr)
	})
	t.Run("missing object", func(t *testing.T) {
		require := require.New(t)
		_, err := ParseActivity(map[string]any{
			"type":  "Like",
			"actor": "https://remote.example/users/bob",
		})
		var verr *ValidationError
		require.ErrorAs(err, &verr)
	})
	t.Run("unknown type", func(t *testing.T) {
		require := require.New(t)
		_, err := ParseActivity(map[string]any{
			"type":   "Move",
			"actor":  "https://remote.example/users/bob",
			"object": "https://remote.example/users/bob2",
		})
		require.EqualError(err, "Unknown Activity Type")
	})
}

func TestParseActivityCreateShape(t *testing.T) {
	require := require.New(t)

	// a Create must carry a nested Note, not a bare URI
	_, err := ParseActivity(map[string]any{
		"type":   "Create",
		"actor":  "https://remote.example/users/bob",
		"object": "https://remote.example/status/1",
	})
	var verr *ValidationError
	require.ErrorAs(err, &verr)

	_, err = ParseActivity(map[string]any{
		"type":  "Create",
		"actor": "https://remote.example/users/bob",
		"object": map[string]any{
			"type": "Note",
			"id":   "https://remote.example/status/1",
			"url":  "https://remote.example/status/1",
			// content missing
		},
	})
	require.ErrorAs(err, &verr)

	a, err := ParseActivity(map[string]any{
		"type":  "Create",
		"actor": "https://remote.example/users/bob",
		"object": map[string]any{
			"type":    "Note",
			"id":      "https://remote.example/status/1",
			"url":     "https://remote.example/status/1",
			"content": "hi",
		},
	})
	require.NoError(err)
	require.Equal(TypeCreate, a.Type)
	require.Equal("https://remote.example/status/1", a.ObjectURI())
}

func TestParseActivityEmbedded(t *testing.T) {
	require := require.New(t)

	a, err := ParseActivity(map[string]any{
		"type":  "Undo",
		"actor": "https://remote.example/users/bob",
		"object": map[string]any{
			"type":   "Follow",
			"object": "https://local.example/users/alice",
		},
	})
	require.NoError(err)

	inner, err := a.Embedded()
	require.NoError(err)
	require.Equal(TypeFollow, inner.Type)
	// the sub-activity inherits the outer actor
	require.Equal("https://remote.example/users/bob", inner.Actor)
}

func TestRecipientsFiltersPublicCollection(t *testing.T) {
	require := require.New(t)

	a, err := ParseActivity(map[string]any{
		"type":   "Like",
		"actor":  "https://remote.example/users/bob",
		"object": "https://remote.example/status/1",
		"to":     []any{PublicCollection},
		"cc":     []any{PublicCollection, "https://local.example/users/alice", "https://local.example/users/alice"},
	})
	require.NoError(err)

	// Public is not an explicit recipient, and duplicates collapse
	require.Equal([]string{"https://local.example/users/alice"}, a.Recipients())
}

func TestActivityTypeRoundTrip(t *testing.T) {
	require := require.New(t)
	for _, name := range []string{"Create", "Follow", "Like", "Undo", "Announce", "Accept", "Delete", "Reject"} {
		require.Equal(name, ParseActivityType(name).String())
	}
	require.Equal(TypeUnknown, ParseActivityType("Question"))
}
