package approval

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/middleware"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/model"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/pubsub"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/utils"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ws"
	"gorm.io/gorm"
)

type approvalHandler struct {
	approval *approvalService
}

type VoteRequest struct {
	SignerAddress string `json:"signerAddress"`
}

func RegisterRoutesAndSubscriptions(rg *gin.RouterGroup, db *gorm.DB, chainClient chain.Client, signers SignerRegistry, executor chain.Signer, hub *ws.NotificationHub) {
	bridge := &approvalEventBridge{notificationHub: hub}
	handler := &approvalHandler{
		approval: &approvalService{
			db:       db,
			chain:    chainClient,
			signers:  signers,
			executor: executor,
			bridge:   bridge,
		},
	}

	milestones := rg.Group("/milestones")
	milestones.POST("/:milestoneId/approvals", middleware.VerifyAuthToken, handler.initiate)
	milestones.GET("/:milestoneId/approval", middleware.VerifyAuthToken, handler.getStatus)

	approvals := rg.Group("/approvals")
	approvals.POST("/:approvalId/votes", middleware.VerifyAuthToken, handler.castVote)
	approvals.POST("/:approvalId/finalize", middleware.VerifyAuthToken, handler.finalize)
	approvals.POST("/:approvalId/retry", middleware.VerifyAuthToken, handler.retry)

	committees := rg.Group("/committees")
	committees.GET("/:committeeId/approvals", middleware.VerifyAuthToken, handler.getCommitteeApprovals)

	listener := &confirmationListener{db: db, bridge: bridge}
	go pubsub.Subscribe(pubsub.SubscriptionHandler{
		SubscriptionId: "payout.execution.confirmations",
		Handler:        listener.handleConfirmation,
	})
}

func (h *approvalHandler) initiate(c *gin.Context) {
	milestoneId, err := strconv.ParseUint(c.Param("milestoneId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	body := InitiateRequest{}
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	body.InitiatorEmail = utils.GetUserEmail(c)

	approval, problem := h.approval.Initiate(c.Request.Context(), milestoneId, body)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusCreated, approval)
}

func (h *approvalHandler) getStatus(c *gin.Context) {
	milestoneId, err := strconv.ParseUint(c.Param("milestoneId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	status, problem := h.approval.GetApprovalStatus(milestoneId)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *approvalHandler) castVote(c *gin.Context) {
	approvalId, err := strconv.ParseUint(c.Param("approvalId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	body := VoteRequest{}
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	vote, problem := h.approval.CastVote(c.Request.Context(), approvalId, body.SignerAddress)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusCreated, vote)
}

func (h *approvalHandler) finalize(c *gin.Context) {
	approvalId, err := strconv.ParseUint(c.Param("approvalId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	body := VoteRequest{}
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	approval, problem := h.approval.Finalize(c.Request.Context(), approvalId, body.SignerAddress)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusOK, approval)
}

func (h *approvalHandler) retry(c *gin.Context) {
	approvalId, err := strconv.ParseUint(c.Param("approvalId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	body := VoteRequest{}
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	status, problem := h.approval.Retry(c.Request.Context(), approvalId, body.SignerAddress)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *approvalHandler) getCommitteeApprovals(c *gin.Context) {
	committeeId, err := strconv.ParseUint(c.Param("committeeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	page, pageProblem := utils.NewPageRequest(c)
	if pageProblem != nil {
		c.JSON(pageProblem.Problem.Status, pageProblem.Problem)
		return
	}

	var approvals []model.Approval
	var total int64

	h.approval.db.Model(&model.Approval{}).Where("committee_id = ?", committeeId).Count(&total)
	result := h.approval.db.
		Preload("Votes").
		Where("committee_id = ?", committeeId).
		Order("time_created DESC").
		Limit(page.Size).
		Offset(page.Offset).
		Find(&approvals)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, reject.UnexpectedProblem(result.Error))
		return
	}

	response := utils.NewPageResponse[model.Approval]().
		WithItems(approvals).
		WithItemCount(total).
		WithNextPageToken(int64(page.Token + 1)).
		Build()

	c.JSON(http.StatusOK, response)
}
