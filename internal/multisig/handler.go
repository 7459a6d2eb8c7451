package multisig

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/middleware"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
	"gorm.io/gorm"
)

type multisigHandler struct {
	multisig *multisigService
}

type ValidateConfigRequest struct {
	ExpectedAddress string   `json:"expectedAddress"`
	Signatories     []string `json:"signatories"`
	Threshold       uint16   `json:"threshold"`
}

func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB) {
	handler := &multisigHandler{
		multisig: &multisigService{db: db},
	}

	routes := rg.Group("/multisig")
	routes.POST("/validate", middleware.VerifyAuthToken, handler.validateConfig)
	routes.POST("/executor-keys", middleware.VerifyAuthToken, handler.createExecutorKey)

	committees := rg.Group("/committees")
	committees.PUT("/:committeeId/multisig-config", middleware.VerifyAuthToken, handler.saveConfig)
	committees.GET("/:committeeId/multisig-config", middleware.VerifyAuthToken, handler.getConfig)
}

// createExecutorKey provisions a fresh KMS signing key for committees that
// enable automatic execution. The caller derives the executor account from the
// returned public key and adds it to the signatory set.
func (h *multisigHandler) createExecutorKey(c *gin.Context) {
	keyName, publicKeyPem, err := chain.CreateExecutorKey(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, reject.NewProblem().
			WithTitle("Cannot provision executor key").
			WithStatus(http.StatusBadGateway).
			WithCode("error.multisig.executor-key-provisioning").
			WithDetail(err.Error()).
			Build())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"keyResourceName": keyName,
		"publicKeyPem":    publicKeyPem,
	})
}

func (h *multisigHandler) validateConfig(c *gin.Context) {
	body := ValidateConfigRequest{}
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	result, problem := h.multisig.validate(body.ExpectedAddress, body.Signatories, body.Threshold)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *multisigHandler) saveConfig(c *gin.Context) {
	committeeId, err := strconv.ParseUint(c.Param("committeeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	body := SaveConfigRequest{}
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	config, problem := h.multisig.saveConfig(committeeId, body)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusOK, config)
}

func (h *multisigHandler) getConfig(c *gin.Context) {
	committeeId, err := strconv.ParseUint(c.Param("committeeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	config, problem := h.multisig.getConfig(committeeId)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusOK, config)
}
