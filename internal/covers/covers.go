// Package covers picks the decorative cover image attached to each interview.
package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/yoockh/intervyu/internal/storage"
)

var defaultNames = []string{
	"adobe", "amazon", "facebook", "hostinger", "pinterest", "quora",
	"reddit", "skype", "spotify", "telegram", "tiktok", "yahoo",
}

var (
	ErrInvalidName     = errors.New("covers: invalid cover name")
	ErrUploadsDisabled = errors.New("covers: uploads are disabled, COVERS_BUCKET is not set")
)

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Picker hands out cover references. Without a bucket they are paths served
// by the frontend (/covers/<name>.png); with one they are public GCS URLs.
type Picker struct {
	bucket   string
	uploader storage.Uploader

	mu    sync.RWMutex
	names []string
	rand  func(n int) int
}

func NewPicker(bucket string, uploader storage.Uploader) *Picker {
	return &Picker{
		bucket:   bucket,
		uploader: uploader,
		names:    append([]string(nil), defaultNames...),
		rand:     rand.IntN,
	}
}

func (p *Picker) Random() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ref(p.names[p.rand(len(p.names))])
}

func (p *Picker) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.names...)
}

func (p *Picker) ref(name string) string {
	object := objectName(name)
	if p.bucket == "" {
		return "/" + object
	}
	return storage.PublicURL(p.bucket, object)
}

func objectName(name string) string {
	return path.Join("covers", name+".png")
}

// Upload stores a new cover and adds it to the rotation.
func (p *Picker) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if p.uploader == nil {
		return "", ErrUploadsDisabled
	}

	url, err := p.uploader.Upload(ctx, objectName(name), contentType, r)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.names {
		if n == name {
			return url, nil
		}
	}
	p.names = append(p.names, name)
	return url, nil
}
