package activitypub

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-json-experiment/json"
	"github.com/wren-social/wren/internal/httpsig"
	"github.com/wren-social/wren/internal/httpx"
	"github.com/wren-social/wren/internal/snowflake"
	"github.com/wren-social/wren/models"
	"gorm.io/gorm"
)

// Inbox validates and dispatches inbound activities. Every activity
// passes the same pipeline: structural validation, actor resolution,
// then one per-verb handler performing at most one state-changing call.
// Handlers are idempotent; at-least-once delivery of the same activity
// is safe without locking.
type Inbox struct {
	db       *gorm.DB
	explorer *Explorer
	codec    *Codec
}

func NewInbox(db *gorm.DB, explorer *Explorer, codec *Codec) *Inbox {
	return &Inbox{
		db:       db,
		explorer: explorer,
		codec:    codec,
	}
}

// Handle processes one inbound activity. actor may be pre-resolved by
// upstream signature verification; when nil it is resolved from the
// activity's actor field. Validation failures surface before any
// storage mutation.
func (i *Inbox) Handle(ctx context.Context, raw map[string]any, actor *models.Actor) error {
	activity, err := ParseActivity(raw)
	if err != nil {
		return err
	}
	if actor == nil {
		actor, err = i.explorer.Resolve(ctx, activity.Actor)
		if err != nil {
			return err
		}
	}

	switch activity.Type {
	case TypeCreate:
		return i.create(ctx, activity)
	case TypeFollow:
		return i.follow(ctx, actor, activity)
	case TypeAccept:
		return i.accept(ctx, actor, activity)
	case TypeLike:
		return i.like(actor, activity)
	case TypeUndo:
		return i.undo(ctx, actor, activity)
	case TypeAnnounce:
		return i.announce(ctx, actor, activity)
	case TypeDelete:
		return i.delete(actor, activity)
	case TypeReject:
		return i.reject(actor, activity)
	default:
		return NewValidationError("Unknown Activity Type")
	}
}

// create stores the carried Note as a local status. Receiving the same
// Create twice finds the status already cached under its URI.
func (i *Inbox) create(ctx context.Context, activity *Activity) error {
	_, err := models.NewStatuses(i.db).FindOrCreate(activity.ObjectURI(), func(string) (*models.Status, error) {
		return i.codec.ObjectToStatus(ctx, activity.Object())
	})
	return err
}

// follow records that actor follows one of our actors, then answers
// with an Accept. The handshake is asynchronous; the inbox response
// does not wait on the Accept delivery.
func (i *Inbox) follow(ctx context.Context, actor *models.Actor, activity *Activity) error {
	target, err := i.localTarget(activity.ObjectURI())
	if err != nil {
		return err
	}
	if _, err := models.NewRelationships(i.db).Follow(actor, target); err != nil {
		return err
	}

	account, err := models.NewAccounts(i.db).AccountForActor(target)
	if err != nil {
		return &ServerError{Err: err}
	}
	go func() {
		postman, err := NewPostman(i.db, account, []*models.Actor{actor})
		if err == nil {
			err = postman.AcceptFollow(context.Background(), activity.Raw())
		}
		if err != nil {
			fmt.Println("Inbox.follow: accept delivery:", err)
		}
	}()
	return nil
}

// accept completes a follow handshake we initiated: the pending entry is
// cleared and the forward edge recorded. An Accept with no matching pending
// request is ignored, otherwise any peer could manufacture follow edges for
// our actors.
func (i *Inbox) accept(ctx context.Context, actor *models.Actor, activity *Activity) error {
	inner, err := activity.Embedded()
	if err != nil {
		return err
	}
	if inner.Type != TypeFollow {
		return NewValidationError("Accept of unsupported activity %q", inner.Type)
	}
	follower, err := i.localTarget(inner.Actor)
	if err != nil {
		return err
	}
	pending := models.NewPendingFollows(i.db)
	ok, err := pending.Exists(follower, actor)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := models.NewRelationships(i.db).Follow(follower, actor); err != nil {
		return err
	}
	return pending.Remove(follower, actor)
}

// like records a favourite edge from actor to the referenced notice.
func (i *Inbox) like(actor *models.Actor, activity *Activity) error {
	status, err := models.NewStatuses(i.db).FindByURI(activity.ObjectURI())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "notice " + activity.ObjectURI()}
		}
		return err
	}
	_, err = models.NewReactions(i.db).Favourite(status, actor)
	return err
}

// undo cancels an earlier Follow or Like. Undoing something that does
// not exist succeeds; at-least-once delivery means we may see the same
// Undo twice.
func (i *Inbox) undo(ctx context.Context, actor *models.Actor, activity *Activity) error {
	inner, err := activity.Embedded()
	if err != nil {
		return err
	}
	switch inner.Type {
	case TypeFollow:
		target, err := models.NewActors(i.db).FindByURI(inner.ObjectURI())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // nothing to undo
			}
			return err
		}
		if _, err := models.NewRelationships(i.db).Unfollow(actor, target); err != nil {
			return err
		}
		return models.NewPendingFollows(i.db).Remove(actor, target)
	case TypeLike:
		status, err := models.NewStatuses(i.db).FindByURI(inner.ObjectURI())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // nothing to undo
			}
			return err
		}
		_, err = models.NewReactions(i.db).Unfavourite(status, actor)
		return err
	default:
		return NewValidationError("Undo of unsupported activity %q", inner.Type)
	}
}

// announce records a repeat of the referenced notice attributed to
// actor, fetching the notice first if it is not yet known locally.
func (i *Inbox) announce(ctx context.Context, actor *models.Actor, activity *Activity) error {
	statuses := models.NewStatuses(i.db)
	original, err := statuses.FindOrCreate(activity.ObjectURI(), func(uri string) (*models.Status, error) {
		account, err := models.NewInstances(i.db).AdminAccount()
		if err != nil {
			return nil, err
		}
		client, err := NewClientForAccount(i.db, account)
		if err != nil {
			return nil, err
		}
		obj, err := client.Get(ctx, uri)
		if err != nil {
			return nil, &NotFoundError{Resource: "notice " + uri, Err: err}
		}
		return i.codec.ObjectToStatus(ctx, obj)
	})
	if err != nil {
		return err
	}
	_, err = statuses.FindOrCreate(activity.ID, func(uri string) (*models.Status, error) {
		return &models.Status{
			ID:       snowflake.TimeToID(activity.Published),
			ActorID:  actor.ID,
			Actor:    actor,
			URI:      uri,
			ReblogID: &original.ID,
			Reblog:   original,
		}, nil
	})
	return err
}

// delete removes the referenced notice. Only its author may do so.
// Deleting a notice we never had, or no longer have, succeeds.
func (i *Inbox) delete(actor *models.Actor, activity *Activity) error {
	statuses := models.NewStatuses(i.db)
	status, err := statuses.FindByURI(activity.ObjectURI())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := statuses.DeleteAs(actor, status); err != nil {
		if errors.Is(err, models.ErrNotAuthorized) {
			return &AuthorizationError{Reason: "only the author may delete a notice"}
		}
		return err
	}
	return nil
}

// reject ends a follow handshake we initiated without creating the
// edge.
func (i *Inbox) reject(actor *models.Actor, activity *Activity) error {
	inner, err := activity.Embedded()
	if err != nil {
		return err
	}
	if inner.Type != TypeFollow {
		return NewValidationError("Reject of unsupported activity %q", inner.Type)
	}
	follower, err := i.localTarget(inner.Actor)
	if err != nil {
		return err
	}
	return models.NewPendingFollows(i.db).Remove(follower, actor)
}

// localTarget resolves uri to an actor hosted by this instance.
func (i *Inbox) localTarget(uri string) (*models.Actor, error) {
	actor, err := models.NewActors(i.db).FindByURI(uri)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "actor " + uri}
		}
		return nil, err
	}
	if !actor.IsLocal() {
		return nil, &NotFoundError{Resource: "local actor " + uri}
	}
	return actor, nil
}

// InboxCreate handles POST /inbox and POST /users/{username}/inbox.
// The HTTP signature is verified before anything else; unsigned or
// invalid requests never reach the handler.
func InboxCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	if err := httpsig.Verify(r, env.GetKey); err != nil {
		return httpx.Error(http.StatusUnauthorized, err)
	}

	var raw map[string]any
	if err := json.UnmarshalFull(r.Body, &raw); err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}

	admin, err := models.NewInstances(env.DB).AdminAccount()
	if err != nil {
		return err
	}
	explorer := NewExplorer(env.DB, admin, env.Cache)
	inbox := NewInbox(env.DB, explorer, NewCodec(env.DB, explorer))
	if err := inbox.Handle(r.Context(), raw, nil); err != nil {
		return httpError(err)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
