package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
)

type CommunityApi struct {
	communityService *services.CommunityService
}

func NewCommunityApi(communityService *services.CommunityService) *CommunityApi {
	return &CommunityApi{communityService: communityService}
}

// Create community channel key
// @Security Bearer
// @Summary Generate a channel key pair and return the opaque community handle
// @Tags Community
// @Success 201 {object} types.OutputCommunityHash
// @Failure 500 {object} api.ApiError "failed to create community"
// @Router /api/v1/communities [post]
func (ca *CommunityApi) CreateCommunity(c *gin.Context) {
	hash, err := ca.communityService.GenerateCommunityHash(c.Request.Context())
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to generate community", "err", err)
		ApiErrorf(c, http.StatusInternalServerError, "failed to create community")
		return
	}
	c.JSON(http.StatusCreated, &types.OutputCommunityHash{CommunityHash: hash})
}

// Get community channel key
// @Security Bearer
// @Summary Returns the decrypted channel key pair of the community
// @Tags Community
// @Param hash path string true "community handle"
// @Success 200 {object} types.CommunityChannelKeyPair
// @Failure 404 {object} api.ApiError "Community not found"
// @Router /api/v1/communities/{hash} [get]
func (ca *CommunityApi) GetCommunity(c *gin.Context) {
	pair, err := ca.communityService.GetCommunityByHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		if errors.Is(err, types.ErrCommunityNotFound) {
			ApiErrorf(c, http.StatusNotFound, "Community not found")
			return
		}
		level.Error(global.Logger).Log("msg", "failed to open community", "err", err)
		ApiErrorf(c, http.StatusInternalServerError, "failed to open community")
		return
	}
	c.JSON(http.StatusOK, pair)
}
