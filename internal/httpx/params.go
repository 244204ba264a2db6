package httpx

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
)

// Params decodes the query parameters of a GET request into the given
// struct. Unknown keys are ignored.
func Params(r *http.Request, v interface{}) error {
	values, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return Error(http.StatusBadRequest, err)
	}
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	if err := dec.Decode(v, values); err != nil {
		return Error(http.StatusBadRequest, err)
	}
	return nil
}

// MediaType returns the media type of the request.
func MediaType(req *http.Request) string {
	typ := strings.Split(req.Header.Get("Content-Type"), ";")[0]
	if typ == "" {
		typ = "application/octet-stream"
	}
	return strings.TrimSpace(typ)
}
