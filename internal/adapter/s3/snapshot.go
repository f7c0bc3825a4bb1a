// Package s3 stores decoded station catalog snapshots in S3.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// Client is the subset of the S3 API used by SnapshotStore.
type Client interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

const snapshotKey = "stations.json"

// snapshotRecord is the stored document.
type snapshotRecord struct {
	Stations    []domain.StationRecord `json:"stations"`
	LastUpdated int64                  `json:"lastUpdated"`
	TTL         int64                  `json:"ttl"`
}

// SnapshotStore implements catalog.SnapshotStore with a single S3 object.
type SnapshotStore struct {
	client Client
	bucket string
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewSnapshotStore creates a store writing to bucket with the given freshness window.
func NewSnapshotStore(client Client, bucket string, ttl time.Duration, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{client: client, bucket: bucket, ttl: ttl, clock: clockwork.NewRealClock(), logger: logger}
}

// NewClient builds an S3 client from the default AWS configuration chain.
func NewClient(ctx context.Context) (*awss3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return awss3.NewFromConfig(cfg), nil
}

// Load returns the snapshot, or (nil, nil) when it is missing or expired.
func (s *SnapshotStore) Load(ctx context.Context) ([]domain.StationRecord, error) {
	if s.bucket == "" {
		return nil, errors.New("empty bucket name")
	}

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(snapshotKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("get station snapshot: %w", err)
	}
	defer out.Body.Close()

	var record snapshotRecord
	if err := json.NewDecoder(out.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode station snapshot: %w", err)
	}

	if s.clock.Now().Unix() > record.TTL {
		s.logger.Debug("station snapshot expired", "bucket", s.bucket)
		return nil, nil
	}
	return record.Stations, nil
}

// Save writes records with a fresh expiry.
func (s *SnapshotStore) Save(ctx context.Context, records []domain.StationRecord) error {
	if s.bucket == "" {
		return errors.New("empty bucket name")
	}

	now := s.clock.Now().Unix()
	record := snapshotRecord{
		Stations:    records,
		LastUpdated: now,
		TTL:         now + int64(s.ttl.Seconds()),
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(record); err != nil {
		return fmt.Errorf("encode station snapshot: %w", err)
	}

	if _, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(snapshotKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("put station snapshot: %w", err)
	}

	s.logger.Debug("station snapshot saved", "bucket", s.bucket, "stations", len(records))
	return nil
}
