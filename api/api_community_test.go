package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/mailio/go-keyless-server/repository"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const couchURL = "http://localhost:5984"

func newCommunityRouter(t *testing.T) *gin.Engine {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	repository.RegisterMockCouchDB(couchURL, repository.Community)
	db, err := repository.NewCouchDBRepository(couchURL, repository.Community, "admin", "admin", true)
	require.NoError(t, err)
	selector := repository.NewCouchDBSelector()
	selector.AddDB(db)

	key := make([]byte, util.DataKeySize)
	key[0] = 1
	keyring, err := util.NewKeyring("k1", map[string][]byte{"k1": key})
	require.NoError(t, err)

	communityApi := NewCommunityApi(services.NewCommunityService(selector, keyring))
	r := gin.New()
	r.POST("/api/v1/communities", communityApi.CreateCommunity)
	r.GET("/api/v1/communities/:hash", communityApi.GetCommunity)
	return r
}

func TestCreateAndGetCommunity(t *testing.T) {
	r := newCommunityRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/communities", nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out types.OutputCommunityHash
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.CommunityHash, 64)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/communities/"+out.CommunityHash, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var pair types.CommunityChannelKeyPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	assert.Equal(t, out.CommunityHash, pair.CommunityHash)
	assert.NotEmpty(t, pair.PrivateKey)
	assert.True(t, util.IsSecp256k1PublicKey(pair.PublicKey))
}

func TestGetUnknownCommunity(t *testing.T) {
	r := newCommunityRouter(t)

	for _, hash := range []string{strings.Repeat("ab", 32), "not-a-handle"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/communities/"+hash, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		var apiErr ApiError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
		assert.Equal(t, "Community not found", apiErr.Message)
	}
}
