package activitypub

import (
	"time"

	"github.com/wren-social/wren/internal/algorithms"
)

// PublicCollection is the ActivityStreams "to everyone" pseudo-recipient.
// Addressing an activity to it carries no explicit recipients.
const PublicCollection = "https://www.w3.org/ns/activitystreams#Public"

// ActivityType enumerates the activity verbs this node understands.
// Anything else parses to TypeUnknown, which every handler rejects.
type ActivityType int

const (
	TypeUnknown ActivityType = iota
	TypeCreate
	TypeFollow
	TypeLike
	TypeUndo
	TypeAnnounce
	TypeAccept
	TypeDelete
	TypeReject
)

var activityTypeNames = map[ActivityType]string{
	TypeCreate:   "Create",
	TypeFollow:   "Follow",
	TypeLike:     "Like",
	TypeUndo:     "Undo",
	TypeAnnounce: "Announce",
	TypeAccept:   "Accept",
	TypeDelete:   "Delete",
	TypeReject:   "Reject",
}

func (t ActivityType) String() string {
	if name, ok := activityTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// ParseActivityType maps a wire type tag onto the closed verb set.
func ParseActivityType(s string) ActivityType {
	for t, name := range activityTypeNames {
		if name == s {
			return t
		}
	}
	return TypeUnknown
}

// An Activity is a validated inbound or outbound envelope. Construct it
// with ParseActivity, which rejects structurally invalid input, so code
// holding an *Activity can rely on the per-verb shape of Object.
type Activity struct {
	Type      ActivityType
	ID        string
	Actor     string
	Published time.Time

	objectURI string
	object    map[string]any
	to        []string
	cc        []string
	raw       map[string]any
}

// Raw returns the wire form the activity was parsed from.
func (a *Activity) Raw() map[string]any {
	return a.raw
}

// ObjectURI returns the URI of the activity's object. For a nested
// object this is its id field.
func (a *Activity) ObjectURI() string {
	if a.objectURI != "" {
		return a.objectURI
	}
	return stringFromAny(a.object["id"])
}

// Object returns the nested object, or nil when the object was a bare
// URI.
func (a *Activity) Object() map[string]any {
	return a.object
}

// Embedded returns the sub-activity carried by an Accept or Undo. The
// sub-activity inherits the outer actor when it names none of its own.
func (a *Activity) Embedded() (*Activity, error) {
	if a.object == nil {
		return nil, NewValidationError("%s requires a nested activity object", a.Type)
	}
	obj := a.object
	if stringFromAny(obj["actor"]) == "" {
		obj = make(map[string]any, len(a.object)+1)
		for k, v := range a.object {
			obj[k] = v
		}
		obj["actor"] = a.Actor
	}
	return ParseActivity(obj)
}

// Recipients returns the explicit recipient URIs of the activity, with
// the Public collection filtered out. An activity addressed only to the
// Public collection has no explicit recipients.
func (a *Activity) Recipients() []string {
	return algorithms.Uniq(algorithms.Filter(
		append(append([]string(nil), a.to...), a.cc...),
		func(uri string) bool { return uri != PublicCollection && uri != "" },
	))
}

// ParseActivity validates raw activity JSON and returns the typed
// envelope. It enforces the required top level fields and the per-verb
// shape of the object; any violation is a ValidationError.
func ParseActivity(raw map[string]any) (*Activity, error) {
	typ, ok := raw["type"].(string)
	if !ok || typ == "" {
		return nil, NewValidationError("no type specified")
	}
	t := ParseActivityType(typ)
	if t == TypeUnknown {
		return nil, NewValidationError("Unknown Activity Type")
	}

	a := &Activity{
		Type:      t,
		ID:        stringFromAny(raw["id"]),
		Actor:     stringFromAny(raw["actor"]),
		Published: timeFromAnyOrNow(raw["published"]),
		to:        stringsFromAny(raw["to"]),
		cc:        stringsFromAny(raw["cc"]),
		raw:       raw,
	}
	if a.Actor == "" {
		return nil, NewValidationError("no actor specified")
	}

	switch obj := raw["object"].(type) {
	case string:
		a.objectURI = obj
	case map[string]any:
		a.object = obj
	case nil:
		return nil, NewValidationError("no object specified")
	default:
		return nil, NewValidationError("malformed object")
	}

	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// validate enforces the per-verb shape of the object.
func (a *Activity) validate() error {
	switch a.Type {
	case TypeFollow, TypeLike, TypeAnnounce, TypeDelete:
		// the object must name a URI, bare or via a nested id
		if a.ObjectURI() == "" {
			return NewValidationError("%s requires an object URI", a.Type)
		}
	case TypeCreate:
		if a.object == nil {
			return NewValidationError("Create requires a nested object")
		}
		if stringFromAny(a.object["type"]) != "Note" {
			return NewValidationError("unsupported object type %q", stringFromAny(a.object["type"]))
		}
		for _, field := range []string{"id", "url", "content"} {
			if stringFromAny(a.object[field]) == "" {
				return NewValidationError("Note object missing %s", field)
			}
		}
	case TypeAccept, TypeUndo:
		if _, err := a.Embedded(); err != nil {
			return err
		}
	case TypeReject:
		if a.ObjectURI() == "" && a.object == nil {
			return NewValidationError("Reject requires an object")
		}
	}
	return nil
}

func stringsFromAny(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []any:
		return algorithms.Map(v, stringFromAny)
	default:
		return nil
	}
}
