package model

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
)

// WeightSource reads a complete model weight blob.
type WeightSource interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// SourceFunc adapts a function to WeightSource.
type SourceFunc func(ctx context.Context, uri string) ([]byte, error)

func (f SourceFunc) Read(ctx context.Context, uri string) ([]byte, error) { return f(ctx, uri) }

// FileSource reads weights from the local filesystem. A leading ~ is expanded.
type FileSource struct{}

func (FileSource) Read(_ context.Context, uri string) ([]byte, error) {
	b, err := fsutil.ReadNonEmpty(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	return b, nil
}

// GCSSource downloads weights from gs://bucket/object.
type GCSSource struct {
	// Client is used when set; otherwise a client is created per read with
	// application default credentials.
	Client *storage.Client
	Log    *zerolog.Logger
}

func (g *GCSSource) Read(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	client := g.Client
	if client == nil {
		client, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating GCS storage client: %w", err)
		}
		defer client.Close()
	}

	startedAt := time.Now()
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening object from GCS %q: %w", uri, err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("downloading from GCS: %w", err)
	}
	if g.Log != nil {
		g.Log.Info().Str("source", uri).Int("bytes", len(b)).Dur("duration", time.Since(startedAt)).Msg("downloaded weights from GCS")
	}
	return b, nil
}

// ParseGCSURI splits gs://bucket/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed gs:// uri %q: want gs://bucket/object", uri)
	}
	return bucket, object, nil
}

// URISource dispatches on the uri scheme: gs:// goes to GCS, anything else
// is a local path.
type URISource struct {
	File FileSource
	GCS  *GCSSource
}

// DefaultSource returns a URISource with a lazily-connecting GCS reader.
func DefaultSource(logger *zerolog.Logger) *URISource {
	return &URISource{GCS: &GCSSource{Log: logger}}
}

func (s *URISource) Read(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "gs://") {
		if s.GCS == nil {
			return nil, fmt.Errorf("no GCS source configured for %q", uri)
		}
		return s.GCS.Read(ctx, uri)
	}
	return s.File.Read(ctx, uri)
}
