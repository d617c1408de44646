package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/pgman/internal/config"
)

func TestSortEntries_NewestFirst(t *testing.T) {
	t1 := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	entries := []BackupEntry{
		{Key: "2023-backup", Size: 50 << 20, LastModified: t1},
		{Key: "2024-backup", Size: 100 << 20, LastModified: t2},
	}
	SortEntries(entries)

	require.Len(t, entries, 2)
	assert.Equal(t, "2024-backup", entries[0].Key)
	assert.Equal(t, "2023-backup", entries[1].Key)
}

func TestSortEntries_TiesBrokenByKeyAscending(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []BackupEntry{
		{Key: "b", LastModified: ts},
		{Key: "c", LastModified: ts},
		{Key: "a", LastModified: ts},
	}
	SortEntries(entries)

	assert.Equal(t, []string{"a", "b", "c"}, []string{entries[0].Key, entries[1].Key, entries[2].Key})
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchBucket"}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("connection refused")))
}

type fakeBucketChecker struct {
	err error
}

func (f *fakeBucketChecker) HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &awss3.HeadBucketOutput{}, nil
}

func TestCheckBucket(t *testing.T) {
	cfg := config.S3Config{Bucket: "backups"}

	err := CheckBucket(context.Background(), &fakeBucketChecker{}, cfg)
	assert.NoError(t, err)

	err = CheckBucket(context.Background(), &fakeBucketChecker{err: &smithy.GenericAPIError{Code: "NotFound"}}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	var listErr *ListError
	err = CheckBucket(context.Background(), &fakeBucketChecker{err: &smithy.GenericAPIError{Code: "AccessDenied"}}, cfg)
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, ListAccessDenied, listErr.Kind)
}

func TestClassifyListError(t *testing.T) {
	var listErr *ListError

	err := classifyListError(&smithy.GenericAPIError{Code: "AccessDenied"})
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, ListAccessDenied, listErr.Kind)

	err = classifyListError(&smithy.GenericAPIError{Code: "InvalidAccessKeyId"})
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, ListAccessDenied, listErr.Kind)

	err = classifyListError(errors.New("dial tcp: no such host"))
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, ListUnreachable, listErr.Kind)
}
