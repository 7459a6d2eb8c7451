package discovery

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/middleware"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
)

type discoveryHandler struct {
	discovery *discoveryService
}

func RegisterRoutes(rg *gin.RouterGroup, chainClient chain.Client) {
	handler := &discoveryHandler{
		discovery: &discoveryService{chain: chainClient},
	}

	routes := rg.Group("/bounties")
	routes.GET("/:bountyId/structure", middleware.VerifyAuthToken, handler.getBountyStructure)
}

func (h *discoveryHandler) getBountyStructure(c *gin.Context) {
	bountyId, err := strconv.ParseUint(c.Param("bountyId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	network := c.Query("network")
	if network == "" {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	structure, problem := h.discovery.DiscoverBountyStructure(c.Request.Context(), network, uint32(bountyId))
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusOK, structure)
}
