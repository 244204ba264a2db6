// package media fetches and validates remote media attachments.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/nfnt/resize"
)

// maxBytes is the most we will download for one attachment.
const maxBytes = 8 << 20

// thumbnailBound is the longest edge of a generated thumbnail.
const thumbnailBound = 320

// An Image is a fetched and validated remote image: its probed
// dimensions and a small locally generated preview. The original stays
// on the origin server.
type Image struct {
	MediaType string
	Width     int
	Height    int
	Thumbnail []byte // PNG, bounded by thumbnailBound
}

// Fetch downloads the image at url, validates that it decodes, and
// returns its dimensions and a thumbnail. Callers treat failure as
// best-effort; a notice survives an attachment that cannot be fetched.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	var buf bytes.Buffer
	err := requests.URL(url).
		Client(f.client).
		CheckStatus(http.StatusOK).
		CheckContentType("image/jpeg", "image/png", "image/gif", "image/webp").
		ToWriter(&limitWriter{w: &buf, n: maxBytes}).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	img, format, err := image.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	bounds := img.Bounds()

	thumb := resize.Thumbnail(thumbnailBound, thumbnailBound, img, resize.Lanczos3)
	var out bytes.Buffer
	if err := png.Encode(&out, thumb); err != nil {
		return nil, fmt.Errorf("thumbnail %s: %w", url, err)
	}

	return &Image{
		MediaType: "image/" + format,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Thumbnail: out.Bytes(),
	}, nil
}

// A Fetcher downloads remote media.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client}
}

// limitWriter fails once more than n bytes have been written through it.
type limitWriter struct {
	w io.Writer
	n int64
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > lw.n {
		return 0, fmt.Errorf("media: response larger than %d bytes", int64(maxBytes))
	}
	lw.n -= int64(len(p))
	return lw.w.Write(p)
}
