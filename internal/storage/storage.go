// Package storage persists user-uploaded files, currently avatars.
package storage

import (
	"context"
	"io"
)

// Provider stores uploaded files and serves them by public URL.
type Provider interface {
	// Upload writes the file under the given name and returns the
	// public URL it is reachable at
	Upload(ctx context.Context, name string, content io.Reader) (string, error)

	// Delete removes a previously uploaded file. Deleting a missing
	// file is not an error
	Delete(ctx context.Context, name string) error
}
