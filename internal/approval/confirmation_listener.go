package approval

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/model"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/utils"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ExecutionConfirmation is emitted by the gateway monitor when a multisig call
// executes on-chain, including executions submitted outside this coordinator.
type ExecutionConfirmation struct {
	Network     string `json:"network"`
	CallHash    string `json:"callHash"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

type confirmationListener struct {
	db     *gorm.DB
	bridge *approvalEventBridge
}

func (cl *confirmationListener) handleConfirmation(_ context.Context, message *gcppubsub.Message) {
	confirmation, err := utils.JsonDecodeByteStream[ExecutionConfirmation](message.Data)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot decode execution confirmation, dropping message")
		message.Ack()
		return
	}

	var approval model.Approval
	result := cl.db.
		Where("network = ? AND call_hash = ? AND status = ?",
			confirmation.Network, confirmation.CallHash, model.ApprovalActive).
		First(&approval)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		message.Ack()
		return
	}
	if result.Error != nil {
		log.Warn().Err(result.Error).Msg("Cannot load approval for execution confirmation")
		message.Nack()
		return
	}

	updateResult := cl.db.
		Model(&model.Approval{}).
		Where("id = ?", approval.Id).
		Updates(map[string]any{
			"status":                 model.ApprovalFinalized,
			"execution_tx_hash":      confirmation.TxHash,
			"execution_block_number": confirmation.BlockNumber,
		})
	if updateResult.Error != nil {
		log.Warn().Err(updateResult.Error).Msg(fmt.Sprintf("Cannot finalize approval %d from confirmation", approval.Id))
		message.Nack()
		return
	}

	log.Info().Msg(fmt.Sprintf("Approval %d finalized from on-chain confirmation %s", approval.Id, confirmation.TxHash))
	approval.Status = model.ApprovalFinalized
	cl.bridge.approvalFinalized(&approval, confirmation.TxHash)
	message.Ack()
}
