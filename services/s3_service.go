package services

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"cardvault_server/utils"
)

const presignExpiry = 5 * time.Minute

// Media kinds accepted for uploads.
const (
	MediaKindBanner = "banner"
	MediaKindPost   = "post"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Presigner is the subset of the S3 presign client used by MediaService.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaService hands out short lived S3 URLs for guild banners and post images.
type MediaService struct {
	Presigner Presigner
	Bucket    string
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

// NewMediaService creates a presign client for bucket from the shared AWS config.
func NewMediaService(cfg aws.Config, bucket string, logger *zap.Logger) *MediaService {
	return &MediaService{
		Presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Bucket:    bucket,
		Logger:    logger,
	}
}

// UploadURL returns a presigned PUT URL and the object key the client must reference afterwards.
func (s *MediaService) UploadURL(ctx context.Context, guildID, kind, fileName, contentType string) (string, string, error) {
	if s.Bucket == "" {
		return "", "", utils.NewUnavailableError("media uploads are not configured")
	}
	if guildID == "" || unsafeFileChars.MatchString(guildID) {
		return "", "", utils.NewValidationError("guildId is invalid")
	}
	if kind != MediaKindBanner && kind != MediaKindPost {
		return "", "", utils.NewValidationError("kind must be %q or %q", MediaKindBanner, MediaKindPost)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", utils.NewValidationError("fileType must be an image type")
	}

	key := s.objectKey(guildID, kind, fileName)
	req, err := s.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		loggerOrNop(s.Logger).Error("failed to presign upload", zap.String("key", key), zap.Error(err))
		return "", "", utils.NewInternalError("failed to generate upload URL", err)
	}
	return req.URL, key, nil
}

// ReadURL returns a presigned GET URL for an object previously uploaded through UploadURL.
func (s *MediaService) ReadURL(ctx context.Context, key string) (string, error) {
	if s.Bucket == "" {
		return "", utils.NewUnavailableError("media uploads are not configured")
	}
	if !strings.HasPrefix(key, "guilds/") || strings.Contains(key, "..") {
		return "", utils.NewValidationError("key is not a media key")
	}

	req, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		loggerOrNop(s.Logger).Error("failed to presign read", zap.String("key", key), zap.Error(err))
		return "", utils.NewInternalError("failed to generate read URL", err)
	}
	return req.URL, nil
}

// objectKey builds guilds/<guildId>/<kind>s/<time>-<id>-<name>.
func (s *MediaService) objectKey(guildID, kind, fileName string) string {
	name := unsafeFileChars.ReplaceAllString(path.Base(fileName), "_")
	if name == "" || name == "." || name == "_" {
		name = "upload"
	}
	stamp := nowOrDefault(s.Now).UTC().Format("20060102150405")
	return path.Join("guilds", guildID, kind+"s", stamp+"-"+newIDOrDefault(s.NewID)+"-"+name)
}
