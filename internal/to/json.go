// package to contains functions for writing values to HTTP responses.
package to

import (
	"net/http"

	"github.com/go-json-experiment/json"
)

// JSON writes the given object to the response body as JSON.
// If obj is a nil slice, an empty JSON array is written.
// If obj is a nil map, an empty JSON object is written.
// If obj is a nil pointer, a null is written.
// A Content-Type set by the caller, eg. application/jrd+json, is preserved.
func JSON(w http.ResponseWriter, obj any) error {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	return json.MarshalOptions{}.MarshalFull(json.EncodeOptions{
		Indent: "  ",
	}, w, obj)
}

// ActivityJSON writes the given object to the response body with the
// ActivityStreams media type.
func ActivityJSON(w http.ResponseWriter, obj any) error {
	w.Header().Set("Content-Type", "application/activity+json; charset=utf-8")
	return json.MarshalOptions{}.MarshalFull(json.EncodeOptions{
		Indent: "  ",
	}, w, obj)
}
