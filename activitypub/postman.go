package activitypub

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/wren-social/wren/internal/algorithms"
	"github.com/wren-social/wren/models"
	"gorm.io/gorm"
)

// Postman delivers outbound activities for one local account to a fixed
// set of recipient actors. One method per verb; each serialises the
// activity, computes the distinct target inbox set and issues one signed
// POST per inbox.
//
// Delivery happens strictly after the local mutation that triggered it,
// so a delivery failure never rolls local state back.
type Postman struct {
	db     *gorm.DB
	from   *models.Account
	to     []*models.Actor
	client *Client
}

// NewPostman returns a postman sending as from to the given recipients.
func NewPostman(db *gorm.DB, from *models.Account, to []*models.Actor) (*Postman, error) {
	client, err := NewClientForAccount(db, from)
	if err != nil {
		return nil, err
	}
	return &Postman{
		db:     db,
		from:   from,
		to:     to,
		client: client,
	}, nil
}

// Follow sends a Follow of every recipient and registers the pending
// request once the remote party acknowledges it. 409 means the remote
// side already considers us following, which is the desired state, so it
// registers the pending entry too.
func (p *Postman) Follow(ctx context.Context) error {
	for _, target := range p.targets() {
		envelope := Envelope(TypeFollow, p.activityID(), p.from.Actor.URI, target.URI)
		if err := p.deliverFollow(ctx, target.Inbox(), envelope); err != nil {
			return err
		}
		if err := models.NewPendingFollows(p.db).Add(p.from.Actor, target); err != nil {
			return &ServerError{Err: err}
		}
	}
	return nil
}

// UndoFollow retracts an earlier Follow and clears the pending entry.
func (p *Postman) UndoFollow(ctx context.Context) error {
	for _, target := range p.targets() {
		inner := Envelope(TypeFollow, p.activityID(), p.from.Actor.URI, target.URI)
		envelope := UndoEnvelope(p.activityID(), p.from.Actor.URI, inner)
		if err := p.deliverFollow(ctx, target.Inbox(), envelope); err != nil {
			return err
		}
		if err := models.NewPendingFollows(p.db).Remove(p.from.Actor, target); err != nil {
			return &ServerError{Err: err}
		}
	}
	return nil
}

// AcceptFollow answers a received Follow, completing the handshake from
// our side. Any pending entry the requester holds with us is cleared.
func (p *Postman) AcceptFollow(ctx context.Context, follow map[string]any) error {
	for _, target := range p.targets() {
		envelope := Envelope(TypeAccept, p.activityID(), p.from.Actor.URI, follow)
		if err := p.deliverFollow(ctx, target.Inbox(), envelope); err != nil {
			return err
		}
		if err := models.NewPendingFollows(p.db).Remove(target, p.from.Actor); err != nil {
			return &ServerError{Err: err}
		}
	}
	return nil
}

// Like delivers a Like of the given notice to every recipient inbox.
func (p *Postman) Like(ctx context.Context, statusURI string) error {
	return p.fanOut(ctx, Envelope(TypeLike, p.activityID(), p.from.Actor.URI, statusURI))
}

// UndoLike retracts a Like.
func (p *Postman) UndoLike(ctx context.Context, statusURI string) error {
	inner := Envelope(TypeLike, p.activityID(), p.from.Actor.URI, statusURI)
	return p.fanOut(ctx, UndoEnvelope(p.activityID(), p.from.Actor.URI, inner))
}

// Create delivers a Create carrying the given notice.
func (p *Postman) Create(ctx context.Context, codec *Codec, status *models.Status) error {
	envelope := Envelope(TypeCreate, p.activityID(), p.from.Actor.URI, codec.StatusToObject(status))
	envelope["published"] = status.ID.ToTime().UTC().Format("2006-01-02T15:04:05Z")
	return p.fanOut(ctx, envelope)
}

// Announce delivers a boost of the given notice.
func (p *Postman) Announce(ctx context.Context, statusURI string) error {
	return p.fanOut(ctx, Envelope(TypeAnnounce, p.activityID(), p.from.Actor.URI, statusURI))
}

// Delete delivers a Delete of the given notice to every recipient
// inbox. Deliveries are independent; a failing inbox does not stop the
// others, and every failure is reported in one aggregated error.
func (p *Postman) Delete(ctx context.Context, statusURI string) error {
	return p.fanOut(ctx, Envelope(TypeDelete, p.activityID(), p.from.Actor.URI, statusURI))
}

// fanOut delivers the envelope to every recipient inbox in parallel and
// aggregates per-inbox failures.
func (p *Postman) fanOut(ctx context.Context, envelope map[string]any) error {
	var (
		mu       sync.Mutex
		failures = map[string]error{}
		wg       sync.WaitGroup
	)
	for _, inbox := range p.inboxes() {
		inbox := inbox
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.deliver(ctx, inbox, envelope); err != nil {
				mu.Lock()
				failures[inbox] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(failures) > 0 {
		return &DeliveryError{Failures: failures}
	}
	return nil
}

// deliver posts the envelope to one inbox and interprets the response.
func (p *Postman) deliver(ctx context.Context, inbox string, envelope map[string]any) error {
	res, err := p.client.Post(ctx, inbox, envelope)
	if err != nil {
		return err
	}
	switch res.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return errorFromResponse(res)
	}
}

// deliverFollow posts a follow-family envelope. 409 means the remote
// side is already in the desired state and counts as success.
func (p *Postman) deliverFollow(ctx context.Context, inbox string, envelope map[string]any) error {
	res, err := p.client.Post(ctx, inbox, envelope)
	if err != nil {
		return &DeliveryError{Failures: map[string]error{inbox: err}}
	}
	switch res.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusConflict:
		return nil
	default:
		return &DeliveryError{Failures: map[string]error{inbox: errorFromResponse(res)}}
	}
}

// errorFromResponse extracts the structured {error} message a remote
// server returned, falling back to the bare status code.
func errorFromResponse(res *Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(res.Body, &body); err == nil && body.Error != "" {
		return fmt.Errorf("remote returned %d: %s", res.StatusCode, body.Error)
	}
	return fmt.Errorf("remote returned %d", res.StatusCode)
}

// targets returns the recipients excluding the sender itself.
func (p *Postman) targets() []*models.Actor {
	return algorithms.Filter(p.to, func(a *models.Actor) bool {
		return a.ID != p.from.ActorID
	})
}

// inboxes returns the distinct inbox URIs to deliver to, preferring an
// actor's shared inbox when one is advertised and excluding our own
// inboxes to avoid self-delivery loops.
func (p *Postman) inboxes() []string {
	own := map[string]bool{
		p.from.Actor.InboxURI:       true,
		p.from.Actor.SharedInboxURI: true,
		fmt.Sprintf("https://%s/inbox", p.from.Domain()): true,
	}
	return algorithms.Uniq(algorithms.Filter(
		algorithms.Map(p.targets(), (*models.Actor).Inbox),
		func(inbox string) bool { return inbox != "" && !own[inbox] },
	))
}

func (p *Postman) activityID() string {
	return NewActivityID(p.from.Domain())
}
