package services

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jarcoal/httpmock"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngFile = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func newTestMediaService() (*MediaService, *httpmock.MockTransport) {
	mt := httpmock.NewMockTransport()
	client := s3.New(s3.Options{
		Region:           "us-east-1",
		Credentials:      credentials.NewStaticCredentialsProvider("key", "secret", ""),
		BaseEndpoint:     aws.String("http://s3.test"),
		UsePathStyle:     true,
		HTTPClient:       &http.Client{Transport: mt},
		RetryMaxAttempts: 1,
	})
	env := &types.Environment{S3Client: client}
	env.AddS3Uploader(manager.NewUploader(client))
	ms := NewMediaService(env)
	ms.bucket = "pins"
	return ms, mt
}

func TestValidateMedia(t *testing.T) {
	ms, _ := newTestMediaService()

	contentType, err := ms.Validate(pngFile)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	_, err = ms.Validate(nil)
	assert.ErrorIs(t, err, types.ErrEmptyFile)

	_, err = ms.Validate([]byte("just some text"))
	assert.ErrorIs(t, err, types.ErrUnsupportedFileType)

	ms.maxFileBytes = 10
	_, err = ms.Validate(pngFile)
	assert.ErrorIs(t, err, types.ErrFileTooLarge)
}

func TestUploadRejectsBeforeNetwork(t *testing.T) {
	ms, mt := newTestMediaService()
	_, err := ms.Upload(context.Background(), "notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, types.ErrUnsupportedFileType)
	assert.Equal(t, 0, mt.GetTotalCallCount())
}

func TestUploadPinsFile(t *testing.T) {
	ms, mt := newTestMediaService()
	ms.gatewayURL = "https://ipfs.example.com"
	key := "media/" + util.Sha256Hex(pngFile)

	mt.RegisterResponder("PUT", `=~^http://s3\.test/pins/media/`, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, key) {
			return httpmock.NewStringResponse(400, ""), nil
		}
		resp := httpmock.NewStringResponse(200, "")
		resp.Header.Set("ETag", `"etag"`)
		return resp, nil
	})
	mt.RegisterResponder("HEAD", `=~^http://s3\.test/pins/media/`, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(200, "")
		resp.Header.Set("x-amz-meta-cid", "bafybeigdyrzt")
		return resp, nil
	})

	pinned, err := ms.Upload(context.Background(), "cat.png", pngFile)
	require.NoError(t, err)
	assert.Equal(t, key, pinned.Key)
	assert.Equal(t, "bafybeigdyrzt", pinned.CID)
	assert.Equal(t, "https://ipfs.example.com/ipfs/bafybeigdyrzt", pinned.URI)
	assert.Equal(t, "image/png", pinned.ContentType)
	assert.Equal(t, int64(len(pngFile)), pinned.Size)
}

func TestUnpin(t *testing.T) {
	ms, mt := newTestMediaService()
	mt.RegisterResponder("HEAD", "http://s3.test/pins/media/abc", httpmock.NewStringResponder(200, ""))
	mt.RegisterResponder("HEAD", "http://s3.test/pins/media/missing", httpmock.NewStringResponder(404, ""))
	mt.RegisterResponder("DELETE", `=~^http://s3\.test/pins/media/abc`, httpmock.NewStringResponder(204, ""))

	assert.NoError(t, ms.Unpin(context.Background(), "/media/abc"))
	assert.ErrorIs(t, ms.Unpin(context.Background(), "media/missing"), types.ErrNotFound)
	assert.ErrorIs(t, ms.Unpin(context.Background(), "other/abc"), types.ErrBadRequest)
}
