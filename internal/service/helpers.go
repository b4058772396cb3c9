package service

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// sleepFunc waits for d or until ctx is done. Tests replace it to avoid real waits.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// urlMediaType returns the registered file type for the extension of rawURL's
// path, or types.Unknown.
func urlMediaType(rawURL string) types.Type {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.Unknown
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext == "" || !filetype.IsSupported(ext) {
		return types.Unknown
	}
	return filetype.GetType(ext)
}
