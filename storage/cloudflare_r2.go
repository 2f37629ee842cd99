package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type CloudflareR2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

type cloudflareR2Store struct {
	s3Client      *s3.Client
	bucketName    string
	publicBaseURL string
}

func NewCloudflareR2Store(cfg CloudflareR2Config) (SnapshotStore, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" || cfg.PublicBaseURL == "" {
		return nil, errors.New("invalid Cloudflare R2 configuration: all fields are required")
	}

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		r2Endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
		return aws.Endpoint{
			URL:           r2Endpoint,
			SigningRegion: "auto",
		}, nil
	})

	sdkCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}

	return &cloudflareR2Store{
		s3Client:      s3.NewFromConfig(sdkCfg),
		bucketName:    cfg.BucketName,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// snapshotKey is stable per phase and day, re-archiving the same completed
// phase overwrites rather than accumulates.
func snapshotKey(snapshot *BracketSnapshot) string {
	return fmt.Sprintf("brackets/event-%d/phase-%d/%s.json",
		snapshot.Phase.EventID, snapshot.Phase.ID, snapshot.ArchivedAt.UTC().Format("2006-01-02"))
}

func (s *cloudflareR2Store) Archive(ctx context.Context, snapshot *BracketSnapshot) (*ArchiveResult, error) {
	if snapshot == nil || snapshot.Phase == nil {
		return nil, errors.New("snapshot must carry a phase")
	}
	if snapshot.ArchivedAt.IsZero() {
		snapshot.ArchivedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot for phase %d: %w", snapshot.Phase.ID, err)
	}

	key := snapshotKey(snapshot)
	putObjectInput := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	}

	result, err := s.s3Client.PutObject(ctx, putObjectInput)
	if err != nil {
		return nil, fmt.Errorf("failed to upload snapshot to R2 (key: %s): %w", key, err)
	}

	etag := ""
	if result.ETag != nil {
		// S3-compatible APIs wrap the ETag in double quotes.
		etag = strings.Trim(*result.ETag, "\"")
	}

	return &ArchiveResult{
		Key:      key,
		Location: s.GetPublicURL(key),
		ETag:     etag,
	}, nil
}

func (s *cloudflareR2Store) Delete(ctx context.Context, key string) error {
	deleteObjectInput := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}

	if _, err := s.s3Client.DeleteObject(ctx, deleteObjectInput); err != nil {
		return fmt.Errorf("failed to delete object from R2 (key: %s): %w", key, err)
	}
	return nil
}

func (s *cloudflareR2Store) GetPublicURL(key string) string {
	if s.publicBaseURL == "" || key == "" {
		return ""
	}

	baseURL, err := url.Parse(s.publicBaseURL)
	if err != nil {
		return ""
	}
	pathURL, err := url.Parse(key)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(pathURL).String()
}
