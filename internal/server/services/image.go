package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Satyam1603/GoTogether/internal/common"
	sc "github.com/Satyam1603/GoTogether/internal/server/config"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/repomanager"
)

// Seams over the AWS SDK so tests never reach a real endpoint.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ImageService hands out presigned URLs for profile pictures stored in an
// S3-compatible bucket. The server never proxies image bytes.
type ImageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewImageService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *ImageService {
	return &ImageService{db: db, repomanager: m, config: cfg, now: time.Now}
}

// ProfileImageKey returns a fresh object key of the form
// users/<yyyy>/<m>/<d>/<userID>/<uuid>.
func ProfileImageKey(userID string, d time.Time) string {
	return fmt.Sprintf("users/%d/%d/%d/%s/%v", d.Year(), d.Month(), d.Day(), userID, uuid.New())
}

func (s *ImageService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a new object key and a presigned PUT URL for it, and
// records the key as the user's profile image.
func (s *ImageService) PresignUpload(ctx context.Context, userID, contentType string) (key, url string, err error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: content type must be an image", common.ErrValidation)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key = ProfileImageKey(userID, s.now())

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(s.config.S3PresignTTL))
	if err != nil {
		return "", "", err
	}

	if err := s.repomanager.Users(s.db).SetProfileImageKey(ctx, userID, key); err != nil {
		return "", "", fmt.Errorf("error storing image key: %w", err)
	}

	return key, req.URL, nil
}

// PresignDownload returns a presigned GET URL for the user's current profile
// image, or common.ErrorNotFound when none was uploaded.
func (s *ImageService) PresignDownload(ctx context.Context, userID string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ProfileImageKey == nil || *user.ProfileImageKey == "" {
		return "", common.ErrorNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    user.ProfileImageKey,
	}, s3.WithPresignExpires(s.config.S3PresignTTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
