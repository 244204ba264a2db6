package activitypub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wren-social/wren/internal/snowflake"
	"github.com/wren-social/wren/media"
	"github.com/wren-social/wren/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"gorm.io/gorm"
)

// Codec translates between the local notice model and ActivityStreams
// JSON objects. Decoding resolves authors and mentioned actors through
// the Explorer and sanitises remote HTML content; encoding produces the
// Note and activity envelopes the postman delivers.
type Codec struct {
	db       *gorm.DB
	explorer *Explorer
	media    *media.Fetcher
}

func NewCodec(db *gorm.DB, explorer *Explorer) *Codec {
	return &Codec{
		db:       db,
		explorer: explorer,
		media:    media.NewFetcher(nil),
	}
}

// ObjectToStatus builds a local status from a Create's Note object. The
// author and every explicit recipient are resolved through the
// Explorer; the reply parent is looked up locally only; attachments are
// fetched best-effort and never fail the Create.
func (c *Codec) ObjectToStatus(ctx context.Context, obj map[string]any) (*models.Status, error) {
	attributedTo := stringFromAny(obj["attributedTo"])
	if attributedTo == "" {
		return nil, NewValidationError("No attributedTo specified")
	}
	author, err := c.explorer.Resolve(ctx, attributedTo)
	if err != nil {
		return nil, err
	}

	st := &models.Status{
		ID:      snowflake.TimeToID(timeFromAnyOrNow(obj["published"])),
		ActorID: author.ID,
		Actor:   author,
		URI:     stringFromAny(obj["id"]),
		URL:     stringFromAny(obj["url"]),
		Note:    Sanitize(stringFromAny(obj["content"])),
	}

	if inReplyTo := stringFromAny(obj["inReplyTo"]); inReplyTo != "" {
		parent, err := models.NewStatuses(c.db).FindByURI(inReplyTo)
		switch {
		case err == nil:
			st.InReplyToID = &parent.ID
			st.InReplyToActorID = &parent.ActorID
		case errors.Is(err, gorm.ErrRecordNotFound):
			// parent unknown locally, keep the status a root
		default:
			return nil, err
		}
	}

	if location := mapFromAny(obj["location"]); location != nil {
		if lat, ok := location["latitude"].(float64); ok {
			if lon, ok := location["longitude"].(float64); ok {
				st.Latitude, st.Longitude = &lat, &lon
			}
		}
	}

	for _, uri := range recipientsOf(obj) {
		mention, err := c.explorer.Resolve(ctx, uri)
		if err != nil {
			// unresolvable recipients are skipped, not fatal
			fmt.Println("ObjectToStatus: resolve recipient:", uri, err)
			continue
		}
		st.Mentions = append(st.Mentions, models.StatusMention{
			StatusID: st.ID,
			ActorID:  mention.ID,
			Actor:    mention,
		})
	}

	for _, attachment := range anyToSlice(obj["attachment"]) {
		a := mapFromAny(attachment)
		url := stringFromAny(a["url"])
		if url == "" {
			continue
		}
		sa := &models.StatusAttachment{
			ID:        snowflake.Now(),
			StatusID:  st.ID,
			URL:       url,
			MediaType: stringFromAny(a["mediaType"]),
		}
		if img, err := c.media.Fetch(ctx, url); err != nil {
			// best-effort: a notice survives an attachment we cannot fetch
			fmt.Println("ObjectToStatus: fetch attachment:", url, err)
		} else {
			sa.MediaType = img.MediaType
			sa.Width = img.Width
			sa.Height = img.Height
			sa.Thumbnail = img.Thumbnail
		}
		st.Attachments = append(st.Attachments, sa)
	}

	return st, nil
}

// StatusToObject renders a local status as the Note object its Create
// activity carries.
func (c *Codec) StatusToObject(status *models.Status) map[string]any {
	obj := map[string]any{
		"id":           status.URI,
		"type":         "Note",
		"url":          status.URL,
		"attributedTo": status.Actor.URI,
		"content":      status.Note,
		"published":    status.ID.ToTime().UTC().Format("2006-01-02T15:04:05Z"),
		"to":           []any{PublicCollection},
	}
	var cc []any
	for _, mention := range status.Mentions {
		if mention.Actor != nil {
			cc = append(cc, mention.Actor.URI)
		}
	}
	obj["cc"] = cc
	if status.InReplyToID != nil {
		var parent models.Status
		if err := c.db.Take(&parent, *status.InReplyToID).Error; err == nil {
			obj["inReplyTo"] = parent.URI
		}
	}
	return obj
}

// recipientsOf collects the explicit recipients of an object, dropping
// the Public collection.
func recipientsOf(obj map[string]any) []string {
	var uris []string
	for _, field := range []string{"to", "cc"} {
		for _, uri := range stringsFromAny(obj[field]) {
			if uri != "" && uri != PublicCollection {
				uris = append(uris, uri)
			}
		}
	}
	return uris
}

// NewActivityID mints a unique id for an outbound activity under the
// sender's domain.
func NewActivityID(domain string) string {
	return fmt.Sprintf("https://%s/activity/%s", domain, uuid.New())
}

// Envelope builds the wire form of an outbound activity.
func Envelope(typ ActivityType, id, actorURI string, object any) map[string]any {
	return map[string]any{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       id,
		"type":     typ.String(),
		"actor":    actorURI,
		"object":   object,
	}
}

// UndoEnvelope wraps a previously sent activity in an Undo.
func UndoEnvelope(id, actorURI string, inner map[string]any) map[string]any {
	// the inner activity keeps its own id and @context is carried once,
	// on the outer envelope
	delete(inner, "@context")
	return Envelope(TypeUndo, id, actorURI, inner)
}

// sanitizeTags is the allow-list of tags inbound Note content may keep.
// Anything else is dropped; script and style lose their text content as
// well.
var sanitizeTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.A:          true,
	atom.Span:       true,
	atom.Em:         true,
	atom.Strong:     true,
	atom.Code:       true,
	atom.Pre:        true,
	atom.Blockquote: true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Li:         true,
}

// sanitizeAttrs is the per-tag attribute allow-list.
var sanitizeAttrs = map[atom.Atom]map[string]bool{
	atom.A: {"href": true, "rel": true},
}

// Sanitize strips remote HTML down to the allow-listed tags and
// attributes. Unknown tags are removed but their text is kept, except
// script and style which are removed wholesale.
func Sanitize(content string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			if skip == 0 {
				sb.WriteString(html.EscapeString(string(z.Text())))
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style:
				switch tok.Type {
				case html.StartTagToken:
					skip++
				case html.EndTagToken:
					if skip > 0 {
						skip--
					}
				}
			default:
				if skip == 0 && sanitizeTags[tok.DataAtom] {
					sb.WriteString(renderTag(tok))
				}
			}
		}
	}
}

func renderTag(tok html.Token) string {
	if tok.Type == html.EndTagToken {
		return "</" + tok.Data + ">"
	}
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(tok.Data)
	allowed := sanitizeAttrs[tok.DataAtom]
	for _, attr := range tok.Attr {
		if allowed[attr.Key] {
			sb.WriteString(fmt.Sprintf(" %s=%q", attr.Key, html.EscapeString(attr.Val)))
		}
	}
	if tok.Type == html.SelfClosingTagToken {
		sb.WriteString("/")
	}
	sb.WriteString(">")
	return sb.String()
}
