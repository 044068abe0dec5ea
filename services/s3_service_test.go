package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault_server/utils"
)

type fakePresigner struct {
	put *s3.PutObjectInput
	get *s3.GetObjectInput
	err error
}

func (p *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.put = params
	if p.err != nil {
		return nil, p.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3/put/" + aws.ToString(params.Key), Method: http.MethodPut}, nil
}

func (p *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.get = params
	if p.err != nil {
		return nil, p.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3/get/" + aws.ToString(params.Key), Method: http.MethodGet}, nil
}

func newTestMediaService(presigner *fakePresigner) *MediaService {
	return &MediaService{
		Presigner: presigner,
		Bucket:    "media",
		Now:       func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) },
		NewID:     func() string { return "abc" },
	}
}

func TestMediaService_UploadURL(t *testing.T) {
	presigner := &fakePresigner{}
	svc := newTestMediaService(presigner)

	url, key, err := svc.UploadURL(context.Background(), "g1", MediaKindPost, "../my binder.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "guilds/g1/posts/20240501093000-abc-my_binder.png", key)
	assert.Equal(t, "https://bucket.s3/put/"+key, url)
	assert.Equal(t, "media", aws.ToString(presigner.put.Bucket))
	assert.Equal(t, "image/png", aws.ToString(presigner.put.ContentType))
}

func TestMediaService_UploadURLValidation(t *testing.T) {
	svc := newTestMediaService(&fakePresigner{})
	tests := []struct {
		name, guildID, kind, fileType string
	}{
		{"bad guild", "../g1", MediaKindPost, "image/png"},
		{"bad kind", "g1", "avatar", "image/png"},
		{"not an image", "g1", MediaKindBanner, "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.UploadURL(context.Background(), tt.guildID, tt.kind, "a.png", tt.fileType)
			assert.True(t, utils.IsType(err, utils.ErrorTypeValidation))
		})
	}
}

func TestMediaService_NotConfigured(t *testing.T) {
	svc := &MediaService{}
	_, _, err := svc.UploadURL(context.Background(), "g1", MediaKindPost, "a.png", "image/png")
	assert.True(t, utils.IsType(err, utils.ErrorTypeUnavailable))

	_, err = svc.ReadURL(context.Background(), "guilds/g1/posts/a.png")
	assert.True(t, utils.IsType(err, utils.ErrorTypeUnavailable))
}

func TestMediaService_ReadURL(t *testing.T) {
	presigner := &fakePresigner{}
	svc := newTestMediaService(presigner)

	url, err := svc.ReadURL(context.Background(), "guilds/g1/banners/x.png")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3/get/guilds/g1/banners/x.png", url)

	_, err = svc.ReadURL(context.Background(), "private/secrets.txt")
	assert.True(t, utils.IsType(err, utils.ErrorTypeValidation))
	_, err = svc.ReadURL(context.Background(), "guilds/../private")
	assert.True(t, utils.IsType(err, utils.ErrorTypeValidation))
}

func TestMediaService_PresignFailure(t *testing.T) {
	svc := newTestMediaService(&fakePresigner{err: errors.New("no credentials")})
	_, _, err := svc.UploadURL(context.Background(), "g1", MediaKindBanner, "b.jpg", "image/jpeg")
	assert.True(t, utils.IsType(err, utils.ErrorTypeInternal))
}
