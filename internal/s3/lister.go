package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"

	"github.com/bnema/pgman/internal/config"
)

// BackupEntry is one listed dump object. Immutable once listed; a fresh
// listing replaces the whole sequence.
type BackupEntry struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListErrorKind classifies listing failures.
type ListErrorKind int

const (
	ListUnreachable ListErrorKind = iota
	ListAccessDenied
)

type ListError struct {
	Kind ListErrorKind
	Err  error
}

func (e *ListError) Error() string {
	switch e.Kind {
	case ListAccessDenied:
		return fmt.Sprintf("access denied listing objects: %v", e.Err)
	default:
		return fmt.Sprintf("object store unreachable: %v", e.Err)
	}
}

func (e *ListError) Unwrap() error { return e.Err }

// List returns the backup objects under the configured prefix, newest
// first. A missing bucket or prefix is treated as an empty listing, not a
// failure: an operator pointing at a not-yet-populated location should see
// an empty pane, not an error popup.
func List(ctx context.Context, client *s3.Client, cfg config.S3Config) ([]BackupEntry, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.Bucket),
	}
	if cfg.Prefix != "" {
		input.Prefix = aws.String(cfg.Prefix)
	}

	var entries []BackupEntry
	paginator := s3.NewListObjectsV2Paginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				log.Debug("bucket or prefix not found, treating as empty listing", "bucket", cfg.Bucket)
				return nil, nil
			}
			return nil, classifyListError(err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil {
				continue
			}
			entries = append(entries, BackupEntry{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: *obj.LastModified,
			})
		}
	}

	SortEntries(entries)
	log.Debug("listed backup objects", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "count", len(entries))
	return entries, nil
}

// SortEntries orders entries newest first, ties broken by key ascending so
// repeated listings of the same objects are deterministic.
func SortEntries(entries []BackupEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastModified.Equal(entries[j].LastModified) {
			return entries[i].LastModified.After(entries[j].LastModified)
		}
		return entries[i].Key < entries[j].Key
	})
}

// BucketChecker is the slice of the S3 API CheckBucket needs. *s3.Client
// satisfies it; tests substitute a fake.
type BucketChecker interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// CheckBucket probes the configured bucket without transferring anything.
// Unlike List, an absent bucket is reported as an error here: a connection
// test exists to tell the operator their settings are wrong.
func CheckBucket(ctx context.Context, client BucketChecker, cfg config.S3Config) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("bucket %q not found", cfg.Bucket)
	}
	return classifyListError(err)
}

func isNotFound(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchBucket" || code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func classifyListError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return &ListError{Kind: ListAccessDenied, Err: err}
		}
	}
	return &ListError{Kind: ListUnreachable, Err: err}
}
