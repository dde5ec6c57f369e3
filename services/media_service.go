package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
)

const (
	defaultMaxFileBytes = 10 * 1024 * 1024
	mediaKeyPrefix      = "media/"
	// the pinning gateway reports the IPFS content id as object metadata
	cidMetadataKey = "cid"
)

var defaultContentTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "video/mp4"}

// MediaService pins post and mint media through an S3 compatible IPFS pinning gateway
type MediaService struct {
	env          *types.Environment
	bucket       string
	gatewayURL   string
	maxFileBytes int64
	contentTypes []string
}

func NewMediaService(env *types.Environment) *MediaService {
	ms := &MediaService{
		env:          env,
		bucket:       global.Conf.Storage.Bucket,
		gatewayURL:   strings.TrimRight(global.Conf.Storage.GatewayURL, "/"),
		maxFileBytes: global.Conf.Storage.MaxFileBytes,
		contentTypes: global.Conf.Storage.ContentTypes,
	}
	if ms.maxFileBytes <= 0 {
		ms.maxFileBytes = defaultMaxFileBytes
	}
	if len(ms.contentTypes) == 0 {
		ms.contentTypes = defaultContentTypes
	}
	return ms
}

// MaxFileBytes is the largest accepted upload
func (ms *MediaService) MaxFileBytes() int64 {
	return ms.maxFileBytes
}

// Validate checks size and the sniffed content type, returns the content type to store
func (ms *MediaService) Validate(content []byte) (string, error) {
	if len(content) == 0 {
		return "", types.ErrEmptyFile
	}
	if int64(len(content)) > ms.maxFileBytes {
		return "", types.ErrFileTooLarge
	}
	contentType := strings.TrimSpace(strings.Split(http.DetectContentType(content), ";")[0])
	if !util.Contains(ms.contentTypes, contentType) {
		return "", types.ErrUnsupportedFileType
	}
	return contentType, nil
}

// Upload validates and pins the file. Objects are content addressed so re-uploads are idempotent.
func (ms *MediaService) Upload(ctx context.Context, filename string, content []byte) (*types.PinnedFile, error) {
	contentType, err := ms.Validate(content)
	if err != nil {
		return nil, err
	}
	key := mediaKeyPrefix + util.Sha256Hex(content)

	_, uErr := ms.env.S3Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ms.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"filename": filename},
	})
	if uErr != nil {
		level.Error(global.Logger).Log("msg", "failed to pin media", "key", key, "err", uErr)
		return nil, uErr
	}

	head, hErr := ms.env.S3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ms.bucket),
		Key:    aws.String(key),
	})
	if hErr != nil {
		level.Error(global.Logger).Log("msg", "failed to read pinned media metadata", "key", key, "err", hErr)
		return nil, hErr
	}
	cid := head.Metadata[cidMetadataKey]

	pinned := &types.PinnedFile{
		Key:         key,
		CID:         cid,
		ContentType: contentType,
		Size:        int64(len(content)),
	}
	switch {
	case cid != "" && ms.gatewayURL != "":
		pinned.URI = ms.gatewayURL + "/ipfs/" + cid
	case cid != "":
		pinned.URI = "ipfs://" + cid
	default:
		pinned.URI = "s3://" + ms.bucket + "/" + key
	}
	return pinned, nil
}

// Unpin deletes a pinned object. Unknown keys return types.ErrNotFound.
func (ms *MediaService) Unpin(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, "/")
	if !strings.HasPrefix(key, mediaKeyPrefix) || strings.Contains(key, "..") {
		return types.ErrBadRequest
	}
	_, hErr := ms.env.S3Client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(ms.bucket), Key: aws.String(key)})
	if hErr != nil {
		return mapS3Error(hErr, key)
	}
	_, err := ms.env.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(ms.bucket), Key: aws.String(key)})
	if err != nil {
		return mapS3Error(err, key)
	}
	return nil
}

func mapS3Error(err error, key string) error {
	var noKey *s3Types.NoSuchKey
	var notFound *s3Types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return types.ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return types.ErrNotFound
		case "AccessDenied":
			level.Warn(global.Logger).Log("msg", "access denied", "objectKey", key)
			return types.ErrNotAuthorized
		}
	}
	level.Error(global.Logger).Log("msg", "error deleting object", "objectKey", key, "err", err)
	return err
}
