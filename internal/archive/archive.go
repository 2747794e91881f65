// Package archive persists snapshots of changed content so reviewers can
// diff what a resource looked like when an alert fired.
package archive

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Store writes one archived snapshot and returns a URI a reviewer can follow.
type Store interface {
	Put(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// ObjectPath builds the archive key for a resource snapshot. Keys sort by
// resource and then by capture time so neighboring versions sit together.
// Stores prepend their configured prefix, so the key itself carries none.
func ObjectPath(resourceID, digest string, capturedAt time.Time) string {
	short := digest
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("%s/%s-%s.txt",
		resourceID, capturedAt.UTC().Format("20060102T150405Z"), short)
}
