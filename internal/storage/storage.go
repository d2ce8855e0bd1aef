package storage

import (
	"context"
	"io"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (publicURL string, err error)
}

// PublicURL is where a publicly readable object is served from.
func PublicURL(bucket, objectName string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + objectName
}
