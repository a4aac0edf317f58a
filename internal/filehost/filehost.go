// Package filehost stores and serves the binary assets HearthForge's
// project/version/collection domain hangs off of: project icons, gallery
// images, collection icons, and version file artifacts. It is backed by any
// S3-compatible object store (AWS S3, Cloudflare R2, MinIO, Tigris).
package filehost

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/errors"
)

// Host stores and retrieves objects keyed by path. A disabled Host's
// Upload calls return an error; callers decide whether that's fatal (e.g.
// version file upload must succeed) or ignorable (icon upload failure
// shouldn't abort project creation in a dev environment without storage
// configured).
type Host struct {
	client  *s3.Client
	bucket  string
	baseURL string
	enabled bool
	log     zerolog.Logger
}

// New constructs a Host from cfg. When cfg.Enabled is false, the returned
// Host is inert: IsEnabled reports false, Upload returns
// errors.CodeFileHosting, and Delete is a no-op that returns nil.
func New(cfg config.FileHostConfig, log zerolog.Logger) (*Host, error) {
	if !cfg.Enabled {
		log.Info().Msg("filehost disabled - no bucket configured")
		return &Host{enabled: false, log: log}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("filehost: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("filehost initialized")

	return &Host{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		enabled: true,
		log:     log,
	}, nil
}

// IsEnabled reports whether object storage is configured.
func (h *Host) IsEnabled() bool { return h.enabled }

// Upload stores data at key with the given content type and returns the
// public URL the object is reachable at.
func (h *Host) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if !h.enabled {
		return "", errors.New(errors.CodeFileHosting, "file hosting is not configured")
	}

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrap(errors.CodeFileHosting, "upload object", err)
	}

	h.log.Info().Str("key", key).Int("size_bytes", len(data)).Msg("uploaded object")
	return h.PublicURL(key), nil
}

// Delete removes the object at key and returns any storage error wrapped
// as errors.CodeFileHosting. Call sites that treat deletion as best-effort
// (old icon replacement, rollback cleanup) use DeleteBestEffort, which logs
// and swallows the error instead.
func (h *Host) Delete(ctx context.Context, key string) error {
	if !h.enabled || key == "" {
		return nil
	}
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(errors.CodeFileHosting, "delete object", err)
	}
	return nil
}

// DeleteBestEffort deletes key and logs any failure instead of returning it,
// for call sites the spec names as best-effort (old image replacement,
// upload rollback on a failed transaction).
func (h *Host) DeleteBestEffort(ctx context.Context, key string) {
	if err := h.Delete(ctx, key); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("best-effort delete failed")
	}
}

// PublicURL renders the externally reachable URL for an object key.
func (h *Host) PublicURL(key string) string {
	if h.baseURL == "" {
		return "/" + key
	}
	return h.baseURL + "/" + key
}

// KeyForIcon builds the storage key for a project or collection icon.
func KeyForIcon(kind, id, ext string) string {
	return fmt.Sprintf("%s/%s/icon%s", kind, id, ext)
}

// KeyForGalleryImage builds the storage key for one project gallery image.
func KeyForGalleryImage(projectID, filename string) string {
	return fmt.Sprintf("project/%s/gallery/%s", projectID, filename)
}

// KeyForVersionFile builds the storage key for a version's uploaded
// artifact, namespaced by its SHA1 so identical uploads across versions
// dedupe at the object-store layer.
func KeyForVersionFile(sha1Hex, filename string) string {
	return fmt.Sprintf("data/%s/%s", sha1Hex, filename)
}

// HashFile computes the SHA1 and SHA512 hex digests of data, as stored
// alongside every version file (spec.md's VERSION_READ hash-lookup
// endpoints key on either algorithm).
func HashFile(data []byte) (sha1Hex, sha512Hex string) {
	s1 := sha1.Sum(data)
	s512 := sha512.Sum512(data)
	return hex.EncodeToString(s1[:]), hex.EncodeToString(s512[:])
}

// ReadAllLimited reads r up to limit+1 bytes, returning an error if the
// content exceeds limit. Used to bound icon/gallery/version-file upload
// sizes before they ever reach the S3 PutObject call.
func ReadAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Wrap(errors.CodeFileHosting, "read upload body", err)
	}
	if int64(len(data)) > limit {
		return nil, errors.New(errors.CodeFileHosting, fmt.Sprintf("upload exceeds %d byte limit", limit))
	}
	return data, nil
}
