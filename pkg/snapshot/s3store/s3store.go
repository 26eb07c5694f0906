// ABOUTME: S3 object-storage snapshot store
// ABOUTME: Objects live under {prefix}{device}/{key}.txt; PutObject publishes atomically

package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/nainya/confsnap/pkg/snapshot"
)

// HeadObject reports a missing key with this code rather than NoSuchKey
const errCodeNotFound = "NotFound"

// Config describes how to reach the bucket.
type Config struct {
	Bucket   string
	Prefix   string // Optional key prefix, e.g. "confsnap/"
	Region   string
	Endpoint string // Optional, for S3-compatible stores such as MinIO
}

// Store keeps snapshots in an S3 bucket.
type Store struct {
	client s3iface.S3API
	bucket string
	prefix string
	clock  snapshot.Clock
	locks  snapshot.DeviceLocks
}

// New wraps an existing S3 client.
func New(client s3iface.S3API, bucket, prefix string, clock snapshot.Clock) *Store {
	if clock == nil {
		clock = snapshot.SystemClock
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		clock:  clock,
	}
}

// Open builds an S3 client from cfg and the default credential chain.
func Open(cfg Config, clock snapshot.Clock) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3store: create session: %w", err)
	}

	return New(s3.New(sess), cfg.Bucket, cfg.Prefix, clock), nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Prefix returns the normalized object key prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) devicePrefix(deviceID string) string {
	return s.prefix + deviceID + "/"
}

// ObjectKey returns the object key holding ref.
func (s *Store) ObjectKey(ref snapshot.Ref) string {
	return s.devicePrefix(ref.DeviceID) + ref.Key() + snapshot.FileExt
}

func (s *Store) Save(ctx context.Context, deviceID, config string) (*snapshot.Snapshot, error) {
	if err := snapshot.ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	unlock := s.locks.Lock(deviceID)
	defer unlock()

	history, err := s.list(ctx, deviceID)
	if err != nil {
		return nil, &snapshot.StorageWriteError{DeviceID: deviceID, Op: "read history", Err: err}
	}

	ref, err := snapshot.NextRef(deviceID, now, history)
	if err != nil {
		return nil, &snapshot.StorageWriteError{DeviceID: deviceID, Op: "allocate key", Err: err}
	}

	// Listing can lag behind writes from other processes; probe before writing
	for {
		exists, err := s.Exists(ctx, ref)
		if err != nil {
			return nil, &snapshot.StorageWriteError{DeviceID: deviceID, Op: "probe key", Err: err}
		}
		if !exists {
			break
		}
		ref.Seq++
		if ref.Seq > snapshot.MaxSeq {
			return nil, &snapshot.StorageWriteError{DeviceID: deviceID, Op: "allocate key", Err: errors.New("sequence exhausted")}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &snapshot.StorageWriteError{DeviceID: deviceID, Op: "publish", Err: err}
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.ObjectKey(ref)),
		Body:        bytes.NewReader([]byte(config)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return nil, &snapshot.StorageWriteError{DeviceID: deviceID, Op: "publish", Err: err}
	}

	return &snapshot.Snapshot{Ref: ref, Config: config}, nil
}

func (s *Store) List(ctx context.Context, deviceID string) ([]snapshot.Ref, error) {
	if err := snapshot.ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	return s.list(ctx, deviceID)
}

func (s *Store) list(ctx context.Context, deviceID string) ([]snapshot.Ref, error) {
	prefix := s.devicePrefix(deviceID)
	refs := []snapshot.Ref{}

	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, snapshot.FileExt) {
				continue
			}
			ref, err := snapshot.ParseKey(deviceID, strings.TrimSuffix(name, snapshot.FileExt))
			if err != nil {
				continue
			}
			refs = append(refs, ref)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	snapshot.SortRefs(refs)
	return refs, nil
}

func (s *Store) Load(ctx context.Context, ref snapshot.Ref) (string, error) {
	if err := snapshot.ValidateDeviceID(ref.DeviceID); err != nil {
		return "", err
	}

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.ObjectKey(ref)),
	})
	if isNotFound(err) {
		return "", &snapshot.NotFoundError{Ref: ref}
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", ref.Key(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ref.Key(), err)
	}
	return string(data), nil
}

// Exists probes the object with HeadObject.
func (s *Store) Exists(ctx context.Context, ref snapshot.Ref) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.ObjectKey(ref)),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, errCodeNotFound:
		return true
	}
	return false
}
