package walletbridge

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/middleware"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
)

type walletHandler struct {
	bridge *Bridge
}

type SignatureResponseRequest struct {
	Signature string `json:"signature"`
	Rejected  bool   `json:"rejected"`
}

func RegisterRoutes(rg *gin.RouterGroup, bridge *Bridge) {
	handler := &walletHandler{bridge: bridge}

	routes := rg.Group("/wallet")
	routes.POST("/signatures/:requestId", middleware.VerifyAuthToken, handler.resolveSignature)
}

func (h *walletHandler) resolveSignature(c *gin.Context) {
	body := SignatureResponseRequest{}
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	if err := h.bridge.Resolve(c.Param("requestId"), body.Signature, body.Rejected); err != nil {
		c.JSON(http.StatusNotFound, reject.NewProblem().
			WithTitle("Unknown signature request").
			WithStatus(http.StatusNotFound).
			WithCode("error.wallet.unknown-signature-request").
			WithDetail(err.Error()).
			Build())
		return
	}

	c.Status(http.StatusNoContent)
}
