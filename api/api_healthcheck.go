package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/chain"
	"github.com/mailio/go-keyless-server/global"
)

type HealthCheckAPI struct {
	node chain.LedgerReader
}

// NewHealthCheckAPI reports the node's chain id too when node is set
func NewHealthCheckAPI(node chain.LedgerReader) *HealthCheckAPI {
	return &HealthCheckAPI{node: node}
}

// Health check
// @Summary Service status
// @Tags Health
// @Success 200 {object} map[string]interface{}
// @Router /healthcheck [get]
func (ha *HealthCheckAPI) HealthCheck(c *gin.Context) {
	out := gin.H{"status": "ok", "version": global.Conf.Version, "mode": global.Conf.Mode}
	if ha.node != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		info, err := ha.node.GetLedgerInfo(ctx)
		if err != nil {
			level.Warn(global.Logger).Log("msg", "chain node unreachable", "err", err)
			out["chain"] = "unreachable"
		} else {
			out["chain"] = "ok"
			out["chainId"] = info.ChainID
		}
	}
	c.JSON(http.StatusOK, out)
}
