package webfinger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcctParse(t *testing.T) {
	tc := []struct {
		in     string
		expect Acct
	}{
		{"acct:foo@bar.com", Acct{User: "foo", Host: "bar.com"}},
		{"@foo@bar.com", Acct{User: "foo", Host: "bar.com"}},
		{"foo@bar.com", Acct{User: "foo", Host: "bar.com"}},
	}
	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			req := require.New(t)
			got, err := Parse(tt.in)
			req.NoError(err)
			req.Equal(tt.expect, *got)
			req.Equal("acct:foo@bar.com", got.String())
		})
	}
}

func TestAcctURLs(t *testing.T) {
	require := require.New(t)
	a := Acct{User: "foo", Host: "bar.com"}
	require.Equal("https://bar.com/users/foo", a.ID())
	require.Equal("https://bar.com/users/foo/inbox", a.Inbox())
	require.Equal("https://bar.com/inbox", a.SharedInbox())
	require.Equal("https://bar.com/.well-known/webfinger?resource=acct%3Afoo%40bar.com", a.Webfinger())
}

func TestIsHandle(t *testing.T) {
	tc := []struct {
		in     string
		expect bool
	}{
		{"@foo@bar.com", true},
		{"foo@bar.com", true},
		{"https://bar.com/users/foo", false},
		{"foo", false},
	}
	for _, tt := range tc {
		require.Equal(t, tt.expect, IsHandle(tt.in), tt.in)
	}
}

func TestActivityPubLink(t *testing.T) {
	require := require.New(t)
	wf := Webfinger{
		Links: []Link{
			{Rel: "http://webfinger.net/rel/profile-page", Type: "text/html", Href: "https://bar.com/@foo"},
			{Rel: "self", Type: "application/activity+json", Href: "https://bar.com/users/foo"},
		},
	}
	href, err := wf.ActivityPub()
	require.NoError(err)
	require.Equal("https://bar.com/users/foo", href)

	empty := Webfinger{}
	_, err = empty.ActivityPub()
	require.Error(err)
}
