package sign

import (
	"context"

	"github.com/frostming/unearth/internal/fetch"
)

// SessionGetter adapts a fetch.Session into the Getter function KeyCache
// expects, so callers can wire the same session used for index and
// artifact requests into signature verification.
func SessionGetter(s fetch.Session) Getter {
	return func(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
		resp, err := s.Get(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body().Close()
		return LimitedRead(resp.Body(), maxBytes)
	}
}
