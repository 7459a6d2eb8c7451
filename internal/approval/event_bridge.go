package approval

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/model"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/pubsub"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ws"
)

type ApprovalEvent struct {
	Id          string `json:"id"`
	Type        string `json:"type"`
	MilestoneId uint64 `json:"milestoneId"`
	ApprovalId  uint64 `json:"approvalId"`
	Network     string `json:"network"`
	CallHash    string `json:"callHash"`
	TxHash      string `json:"txHash,omitempty"`
}

func (ApprovalEvent) GetEventTopicName() string {
	return "payout.approval.events"
}

// approvalEventBridge pushes workflow transitions to the pubsub topic for the
// notification layer and to the websocket hub for open UI sessions.
type approvalEventBridge struct {
	notificationHub *ws.NotificationHub
}

func (b *approvalEventBridge) approvalInitiated(approval *model.Approval, txHash string) {
	b.publish("APPROVAL_INITIATED", approval, txHash)
}

func (b *approvalEventBridge) voteCast(approval *model.Approval, txHash string) {
	b.publish("APPROVAL_VOTE_CAST", approval, txHash)
}

func (b *approvalEventBridge) approvalFinalized(approval *model.Approval, txHash string) {
	b.publish("APPROVAL_FINALIZED", approval, txHash)
}

func (b *approvalEventBridge) publish(eventType string, approval *model.Approval, txHash string) {
	event := ApprovalEvent{
		Id:          uuid.New().String(),
		Type:        eventType,
		MilestoneId: approval.MilestoneId,
		ApprovalId:  approval.Id,
		Network:     approval.Network,
		CallHash:    approval.CallHash,
		TxHash:      txHash,
	}

	pubsub.Publish(event)
	b.notificationHub.Publish(fmt.Sprintf("approvals/%d", approval.MilestoneId), event)
}
