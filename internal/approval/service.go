package approval

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/grantflow-labs/grantflow-backend/internal/multisig"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chainerr"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/model"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ss58"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	approvalNoLongerActive = "error.approval.no-longer-active"
	approvalCallExpired    = "error.approval.call-no-longer-pending"
	signatureTypeWallet    = "WALLET"
	signatureTypeKms       = "KMS"
)

// SignerRegistry resolves a signatory address to its signing capability,
// normally the wallet bridge.
type SignerRegistry interface {
	SignerFor(address string) chain.Signer
}

type approvalService struct {
	db       *gorm.DB
	chain    chain.Client
	signers  SignerRegistry
	executor chain.Signer
	bridge   *approvalEventBridge
}

type InitiateRequest struct {
	CommitteeId        uint64 `json:"committeeId"`
	ChildBountyId      uint32 `json:"childBountyId"`
	BeneficiaryAddress string `json:"beneficiaryAddress"`
	Amount             string `json:"amount"`
	SignerAddress      string `json:"signerAddress"`

	// InitiatorEmail is taken from the verified access token, never the body.
	InitiatorEmail string `json:"-"`
}

type Status struct {
	Status   string          `json:"status"`
	Approval *model.Approval `json:"approval,omitempty"`
}

// GetApprovalStatus is the single read path callers use before attempting to
// initiate, so the at-most-one-active-approval invariant is always checked
// against the latest persisted state.
func (as *approvalService) GetApprovalStatus(milestoneId uint64) (*Status, *reject.ProblemWithTrace) {
	var approval model.Approval
	result := as.db.
		Preload("Votes").
		Where("milestone_id = ?", milestoneId).
		Order("time_created DESC").
		First(&approval)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return &Status{Status: "none"}, nil
	}
	if result.Error != nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.UnexpectedProblem(result.Error),
			Cause:   result.Error,
		}
	}

	status := "active"
	if approval.Status == model.ApprovalFinalized {
		status = "finalized"
	}

	return &Status{Status: status, Approval: &approval}, nil
}

// Initiate builds and broadcasts the first multisig approval for a milestone
// payout. A provisional Approval row is persisted before broadcast and
// reconciled afterwards, so a crash between the two leaves a record that
// re-query can resolve instead of an orphaned on-chain call.
func (as *approvalService) Initiate(ctx context.Context, milestoneId uint64, request InitiateRequest) (*model.Approval, *reject.ProblemWithTrace) {
	config, problem := as.loadConfig(request.CommitteeId)
	if problem != nil {
		return nil, problem
	}

	signerAddress, problem := as.requireSignatory(request.SignerAddress, config, milestoneId)
	if problem != nil {
		return nil, problem
	}

	errCtx := chainerr.Context{
		Network:          config.Network,
		BountyId:         &config.ParentBountyId,
		MilestoneId:      &milestoneId,
		SignatoryAddress: signerAddress,
	}

	// two signatories racing to initiate: whoever finds an active approval
	// folds into a vote instead of creating a duplicate call
	if existing, problem := as.activeApproval(milestoneId); problem != nil {
		return nil, problem
	} else if existing != nil {
		log.Info().Msg(fmt.Sprintf("Milestone %d already has active approval %d, folding initiate into vote", milestoneId, existing.Id))
		if _, voteProblem := as.CastVote(ctx, existing.Id, signerAddress); voteProblem != nil {
			return nil, voteProblem
		}
		return as.reloadApproval(existing.Id)
	}

	// the first approval reserves a multisig deposit on top of fees
	balance, err := as.chain.AccountBalance(ctx, config.Network, signerAddress)
	if err != nil {
		return nil, as.classified(err, errCtx)
	}
	if balance == "" || balance == "0" {
		return nil, as.categoryProblem(chainerr.CategoryInsufficientBalance, errCtx)
	}

	bounty, err := as.chain.Bounty(ctx, config.Network, config.ParentBountyId)
	if err != nil {
		return nil, as.classified(err, errCtx)
	}
	if bounty == nil || (bounty.Status != model.BountyActive && bounty.Status != model.BountyPendingPayout) {
		return nil, as.categoryProblem(chainerr.CategoryBountyNotActive, errCtx)
	}

	payoutCall, err := as.chain.BuildPayoutCall(ctx, config.Network, chain.PayoutCallRequest{
		ParentBountyId:      config.ParentBountyId,
		ChildBountyId:       request.ChildBountyId,
		BeneficiaryAddress:  request.BeneficiaryAddress,
		Amount:              request.Amount,
		CuratorProxyAddress: config.CuratorProxyAddress,
	})
	if err != nil {
		return nil, as.classified(err, errCtx)
	}

	approval := &model.Approval{
		MilestoneId:      milestoneId,
		CommitteeId:      config.CommitteeId,
		Network:          config.Network,
		CallHash:         payoutCall.CallHash,
		CallData:         payoutCall.CallData,
		InitiatorAddress: signerAddress,
		InitiatorEmail:   request.InitiatorEmail,
		ApprovalWorkflow: config.ApprovalWorkflow,
		Status:           model.ApprovalActive,
		TimeCreated:      time.Now().UTC().UnixMilli(),
	}

	var raced *model.Approval
	err = as.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Approval
		result := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("milestone_id = ? AND status = ?", milestoneId, model.ApprovalActive).
			First(&existing)
		if result.Error == nil {
			raced = &existing
			return nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		return tx.Create(approval).Error
	})
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if raced != nil {
		log.Info().Msg(fmt.Sprintf("Lost initiate race for milestone %d, folding into vote on approval %d", milestoneId, raced.Id))
		if _, voteProblem := as.CastVote(ctx, raced.Id, signerAddress); voteProblem != nil {
			return nil, voteProblem
		}
		return as.reloadApproval(raced.Id)
	}

	// threshold 1 executes in the same extrinsic, no further votes possible
	executeInline := config.Threshold == 1

	unsigned, err := as.chain.BuildApprovalExtrinsic(ctx, config.Network, signerAddress, chain.ApprovalExtrinsicParams{
		MultisigAddress:  config.MultisigAddress,
		Threshold:        config.Threshold,
		OtherSignatories: otherSignatories(config, signerAddress),
		Timepoint:        nil,
		CallHash:         payoutCall.CallHash,
		CallData:         payoutCall.CallData,
		Execute:          executeInline,
	})
	if err != nil {
		as.deleteProvisional(approval)
		return nil, as.classified(err, errCtx)
	}

	signature, err := as.signers.SignerFor(signerAddress).Sign(ctx, []byte(unsigned.Payload))
	if err != nil {
		as.deleteProvisional(approval)
		if errors.Is(err, chain.ErrUserRejected) {
			return nil, as.categoryProblem(chainerr.CategoryUserRejected, errCtx)
		}
		return nil, as.classified(err, errCtx)
	}

	result, err := as.chain.SubmitExtrinsic(ctx, config.Network, unsigned, signature)
	if err != nil {
		// ambiguous failure: the call may have landed anyway, check the chain
		// before discarding the provisional record
		pending, pendingErr := as.chain.PendingMultisigCall(ctx, config.Network, config.MultisigAddress, payoutCall.CallHash)
		if pendingErr == nil && pending != nil {
			log.Warn().Err(err).Msg(fmt.Sprintf("Submission for milestone %d reported failure but call %s is pending, keeping record", milestoneId, payoutCall.CallHash))
			as.recordTimepoint(approval, pending.Timepoint)
			as.recordVote(approval, signerAddress, signatureTypeWallet, "")
			return as.reloadApprovalRaw(approval.Id)
		}
		if executeInline {
			// an executed call leaves pending storage, so an absent entry does
			// not prove the payout never landed. Keep the record; the execution
			// confirmation listener resolves it either way.
			log.Warn().Err(err).Msg(fmt.Sprintf("Executing submission for milestone %d failed ambiguously, keeping record for reconciliation", milestoneId))
			as.recordVote(approval, signerAddress, signatureTypeWallet, "")
			return nil, as.classified(err, errCtx)
		}
		as.deleteProvisional(approval)
		return nil, as.classified(err, errCtx)
	}

	as.recordTimepoint(approval, chain.Timepoint{Height: uint32(result.BlockNumber), Index: result.ExtrinsicIndex})
	as.recordVote(approval, signerAddress, signatureTypeWallet, result.TxHash)

	if executeInline {
		as.markFinalized(approval, result)
		as.bridge.approvalFinalized(approval, result.TxHash)
	} else {
		as.bridge.approvalInitiated(approval, result.TxHash)
	}

	return as.reloadApprovalRaw(approval.Id)
}

// CastVote approves the call an earlier signatory initiated, on the exact
// call hash and timepoint the chain reports. Threshold progress is always
// re-derived from chain-reported approvals, never a local counter.
func (as *approvalService) CastVote(ctx context.Context, approvalId uint64, signerAddress string) (*model.ApprovalVote, *reject.ProblemWithTrace) {
	approval, problem := as.reloadApproval(approvalId)
	if problem != nil {
		return nil, problem
	}

	config, problem := as.loadConfig(approval.CommitteeId)
	if problem != nil {
		return nil, problem
	}

	signerAddress, problem = as.requireSignatory(signerAddress, config, approval.MilestoneId)
	if problem != nil {
		return nil, problem
	}

	errCtx := chainerr.Context{
		Network:          config.Network,
		BountyId:         &config.ParentBountyId,
		MilestoneId:      &approval.MilestoneId,
		SignatoryAddress: signerAddress,
	}

	if approval.Status == model.ApprovalFinalized {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Approval no longer active").
				WithStatus(http.StatusConflict).
				WithCode(approvalNoLongerActive).
				WithDetail("The payout has already been executed, no further votes are needed.").
				Build(),
			Cause: fmt.Errorf("approval %d already finalized", approvalId),
		}
	}

	for _, vote := range approval.Votes {
		if vote.SignatoryAddress == signerAddress {
			return nil, as.categoryProblem(chainerr.CategoryAlreadyApproved, errCtx)
		}
	}

	pending, err := as.chain.PendingMultisigCall(ctx, config.Network, config.MultisigAddress, approval.CallHash)
	if err != nil {
		return nil, as.classified(err, errCtx)
	}
	if pending == nil {
		// the chain no longer tracks the call: expired or executed outside
		// our records. Terminal for this approval, not a retryable failure.
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Multisig call no longer pending").
				WithStatus(http.StatusConflict).
				WithCode(approvalCallExpired).
				WithDetail("The chain no longer tracks this call. It may have expired or been executed elsewhere.").
				Build(),
			Cause: fmt.Errorf("call %s not pending for approval %d", approval.CallHash, approvalId),
		}
	}

	if problem := as.verifyCallIntegrity(approval, pending, errCtx); problem != nil {
		return nil, problem
	}

	for _, approved := range pending.Approvals {
		if sameAccount(approved, signerAddress) {
			return nil, as.categoryProblem(chainerr.CategoryAlreadyApproved, errCtx)
		}
	}

	// chain-reported count decides whether this vote meets the threshold
	meetsThreshold := len(pending.Approvals)+1 >= int(config.Threshold)
	executeInline := meetsThreshold && config.ApprovalWorkflow == model.WorkflowMerged

	timepoint := pending.Timepoint
	unsigned, err := as.chain.BuildApprovalExtrinsic(ctx, config.Network, signerAddress, chain.ApprovalExtrinsicParams{
		MultisigAddress:  config.MultisigAddress,
		Threshold:        config.Threshold,
		OtherSignatories: otherSignatories(config, signerAddress),
		Timepoint:        &timepoint,
		CallHash:         approval.CallHash,
		CallData:         callDataIf(executeInline, approval),
		Execute:          executeInline,
	})
	if err != nil {
		return nil, as.classified(err, errCtx)
	}

	signature, err := as.signers.SignerFor(signerAddress).Sign(ctx, []byte(unsigned.Payload))
	if err != nil {
		if errors.Is(err, chain.ErrUserRejected) {
			return nil, as.categoryProblem(chainerr.CategoryUserRejected, errCtx)
		}
		return nil, as.classified(err, errCtx)
	}

	result, err := as.chain.SubmitExtrinsic(ctx, config.Network, unsigned, signature)
	if err != nil {
		// the vote may have landed despite the reported failure
		requeried, requeryErr := as.chain.PendingMultisigCall(ctx, config.Network, config.MultisigAddress, approval.CallHash)
		if requeryErr == nil && requeried != nil && containsAccount(requeried.Approvals, signerAddress) {
			log.Warn().Err(err).Msg(fmt.Sprintf("Vote submission for approval %d reported failure but chain counts it", approvalId))
			vote := as.recordVote(approval, signerAddress, signatureTypeWallet, "")
			return vote, nil
		}
		return nil, as.classified(err, errCtx)
	}

	as.recordTimepoint(approval, timepoint)
	vote := as.recordVote(approval, signerAddress, signatureTypeWallet, result.TxHash)

	if executeInline {
		as.markFinalized(approval, result)
		as.bridge.approvalFinalized(approval, result.TxHash)
		return vote, nil
	}

	as.bridge.voteCast(approval, result.TxHash)

	if meetsThreshold && config.AutomaticExecution && as.executor != nil {
		if _, problem := as.finalizeWithSigner(ctx, approval, config, as.executor, signatureTypeKms); problem != nil {
			log.Warn().Err(problem.Cause).Msg(fmt.Sprintf("Automatic execution failed for approval %d", approvalId))
		}
	}

	return vote, nil
}

// Finalize submits the call with full call data for on-chain execution once
// the chain reports enough approvals.
func (as *approvalService) Finalize(ctx context.Context, approvalId uint64, signerAddress string) (*model.Approval, *reject.ProblemWithTrace) {
	approval, problem := as.reloadApproval(approvalId)
	if problem != nil {
		return nil, problem
	}
	if approval.Status == model.ApprovalFinalized {
		return approval, nil
	}

	config, problem := as.loadConfig(approval.CommitteeId)
	if problem != nil {
		return nil, problem
	}

	var signer chain.Signer
	signatureType := signatureTypeWallet
	if config.AutomaticExecution && as.executor != nil && signerAddress == "" {
		signer = as.executor
		signatureType = signatureTypeKms
	} else {
		signerAddress, problem = as.requireSignatory(signerAddress, config, approval.MilestoneId)
		if problem != nil {
			return nil, problem
		}
		signer = as.signers.SignerFor(signerAddress)
	}

	return as.finalizeApproval(ctx, approval, config, signer, signatureType)
}

// Retry re-reads persisted and chain state before deciding whether to resume
// as a vote or an execution, instead of re-running the initiate path.
func (as *approvalService) Retry(ctx context.Context, approvalId uint64, signerAddress string) (*Status, *reject.ProblemWithTrace) {
	approval, problem := as.reloadApproval(approvalId)
	if problem != nil {
		return nil, problem
	}
	if approval.Status == model.ApprovalFinalized {
		return &Status{Status: "finalized", Approval: approval}, nil
	}

	config, problem := as.loadConfig(approval.CommitteeId)
	if problem != nil {
		return nil, problem
	}

	signerAddress, problem = as.requireSignatory(signerAddress, config, approval.MilestoneId)
	if problem != nil {
		return nil, problem
	}

	errCtx := chainerr.Context{
		Network:     config.Network,
		MilestoneId: &approval.MilestoneId,
	}

	pending, err := as.chain.PendingMultisigCall(ctx, config.Network, config.MultisigAddress, approval.CallHash)
	if err != nil {
		return nil, as.classified(err, errCtx)
	}
	if pending == nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Multisig call no longer pending").
				WithStatus(http.StatusConflict).
				WithCode(approvalCallExpired).
				Build(),
			Cause: fmt.Errorf("call %s not pending for approval %d", approval.CallHash, approvalId),
		}
	}

	if containsAccount(pending.Approvals, signerAddress) {
		if len(pending.Approvals) >= int(config.Threshold) {
			if _, problem := as.Finalize(ctx, approvalId, signerAddress); problem != nil {
				return nil, problem
			}
		}
		return as.statusOf(approval.MilestoneId)
	}

	if _, problem := as.CastVote(ctx, approvalId, signerAddress); problem != nil {
		return nil, problem
	}
	return as.statusOf(approval.MilestoneId)
}

func (as *approvalService) finalizeApproval(ctx context.Context, approval *model.Approval, config *model.MultisigConfig, signer chain.Signer, signatureType string) (*model.Approval, *reject.ProblemWithTrace) {
	errCtx := chainerr.Context{
		Network:          config.Network,
		BountyId:         &config.ParentBountyId,
		MilestoneId:      &approval.MilestoneId,
		SignatoryAddress: signer.Address(),
	}

	pending, err := as.chain.PendingMultisigCall(ctx, config.Network, config.MultisigAddress, approval.CallHash)
	if err != nil {
		return nil, as.classified(err, errCtx)
	}
	if pending == nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Multisig call no longer pending").
				WithStatus(http.StatusConflict).
				WithCode(approvalCallExpired).
				Build(),
			Cause: fmt.Errorf("call %s not pending for approval %d", approval.CallHash, approval.Id),
		}
	}

	if problem := as.verifyCallIntegrity(approval, pending, errCtx); problem != nil {
		return nil, problem
	}

	// executing counts as the sender's approval when it is still missing
	approvals := len(pending.Approvals)
	if !containsAccount(pending.Approvals, signer.Address()) {
		approvals++
	}
	if approvals < int(config.Threshold) {
		return nil, as.categoryProblem(chainerr.CategoryThresholdNotMet, errCtx)
	}

	return as.finalizeWithSigner(ctx, approval, config, signer, signatureType)
}

func (as *approvalService) finalizeWithSigner(ctx context.Context, approval *model.Approval, config *model.MultisigConfig, signer chain.Signer, signatureType string) (*model.Approval, *reject.ProblemWithTrace) {
	errCtx := chainerr.Context{
		Network:          config.Network,
		MilestoneId:      &approval.MilestoneId,
		SignatoryAddress: signer.Address(),
	}

	timepoint := chain.Timepoint{}
	if approval.TimepointHeight != nil && approval.TimepointIndex != nil {
		timepoint = chain.Timepoint{Height: *approval.TimepointHeight, Index: *approval.TimepointIndex}
	}

	unsigned, err := as.chain.BuildApprovalExtrinsic(ctx, config.Network, signer.Address(), chain.ApprovalExtrinsicParams{
		MultisigAddress:  config.MultisigAddress,
		Threshold:        config.Threshold,
		OtherSignatories: otherSignatories(config, signer.Address()),
		Timepoint:        &timepoint,
		CallHash:         approval.CallHash,
		CallData:         approval.CallData,
		Execute:          true,
	})
	if err != nil {
		return nil, as.classified(err, errCtx)
	}

	signature, err := signer.Sign(ctx, []byte(unsigned.Payload))
	if err != nil {
		if errors.Is(err, chain.ErrUserRejected) {
			return nil, as.categoryProblem(chainerr.CategoryUserRejected, errCtx)
		}
		return nil, as.classified(err, errCtx)
	}

	result, err := as.chain.SubmitExtrinsic(ctx, config.Network, unsigned, signature)
	if err != nil {
		return nil, as.classified(err, errCtx)
	}

	if !containsAccount(voteAddresses(approval.Votes), signer.Address()) {
		as.recordVote(approval, signer.Address(), signatureType, result.TxHash)
	}
	as.markFinalized(approval, result)
	as.bridge.approvalFinalized(approval, result.TxHash)

	return as.reloadApprovalRaw(approval.Id)
}

// verifyCallIntegrity rejects votes whose stored call data no longer hashes
// to the call the chain is accumulating approvals for.
func (as *approvalService) verifyCallIntegrity(approval *model.Approval, pending *chain.PendingMultisig, errCtx chainerr.Context) *reject.ProblemWithTrace {
	if !strings.EqualFold(pending.CallHash, approval.CallHash) {
		return as.categoryProblem(chainerr.CategoryCallDataMismatch, errCtx)
	}

	callData, err := hex.DecodeString(strings.TrimPrefix(approval.CallData, "0x"))
	if err != nil {
		return as.categoryProblem(chainerr.CategoryCallDataMismatch, errCtx)
	}
	digest := blake2b.Sum256(callData)
	if !strings.EqualFold("0x"+hex.EncodeToString(digest[:]), normalizeHash(approval.CallHash)) {
		return as.categoryProblem(chainerr.CategoryCallDataMismatch, errCtx)
	}

	return nil
}

func (as *approvalService) activeApproval(milestoneId uint64) (*model.Approval, *reject.ProblemWithTrace) {
	var approval model.Approval
	result := as.db.
		Preload("Votes").
		Where("milestone_id = ? AND status = ?", milestoneId, model.ApprovalActive).
		First(&approval)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(result.Error), Cause: result.Error}
	}
	return &approval, nil
}

func (as *approvalService) loadConfig(committeeId uint64) (*model.MultisigConfig, *reject.ProblemWithTrace) {
	var config model.MultisigConfig
	result := as.db.
		Preload("Signatories", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order")
		}).
		Where("committee_id = ?", committeeId).
		First(&config)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, &reject.ProblemWithTrace{Problem: reject.NotFoundProblem(), Cause: result.Error}
	}
	if result.Error != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(result.Error), Cause: result.Error}
	}
	return &config, nil
}

func (as *approvalService) reloadApproval(approvalId uint64) (*model.Approval, *reject.ProblemWithTrace) {
	var approval model.Approval
	result := as.db.Preload("Votes").Where("id = ?", approvalId).First(&approval)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, &reject.ProblemWithTrace{Problem: reject.NotFoundProblem(), Cause: result.Error}
	}
	if result.Error != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(result.Error), Cause: result.Error}
	}
	return &approval, nil
}

func (as *approvalService) reloadApprovalRaw(approvalId uint64) (*model.Approval, *reject.ProblemWithTrace) {
	return as.reloadApproval(approvalId)
}

func (as *approvalService) statusOf(milestoneId uint64) (*Status, *reject.ProblemWithTrace) {
	return as.GetApprovalStatus(milestoneId)
}

func (as *approvalService) requireSignatory(address string, config *model.MultisigConfig, milestoneId uint64) (string, *reject.ProblemWithTrace) {
	normalized, err := ss58.Normalize(address)
	if err != nil {
		return "", &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Malformed signer address").
				WithStatus(http.StatusBadRequest).
				WithCode("error.approval.malformed-signer").
				WithDetail(address).
				Build(),
			Cause: err,
		}
	}

	if !multisig.IsSignatory(normalized, config.SignatoryAddresses()) {
		errCtx := chainerr.Context{
			Network:          config.Network,
			MilestoneId:      &milestoneId,
			SignatoryAddress: normalized,
		}
		return "", as.categoryProblem(chainerr.CategoryInvalidSignatory, errCtx)
	}

	return normalized, nil
}

func (as *approvalService) recordVote(approval *model.Approval, signerAddress string, signatureType string, txHash string) *model.ApprovalVote {
	vote := &model.ApprovalVote{
		ApprovalId:       approval.Id,
		SignatoryAddress: signerAddress,
		SignatureType:    signatureType,
		TxHash:           txHash,
		TimeCreated:      time.Now().UTC().UnixMilli(),
	}
	if result := as.db.Create(vote); result.Error != nil {
		log.Warn().Err(result.Error).Msg(fmt.Sprintf("Cannot persist vote for approval %d", approval.Id))
	}
	approval.Votes = append(approval.Votes, *vote)
	return vote
}

func (as *approvalService) recordTimepoint(approval *model.Approval, timepoint chain.Timepoint) {
	approval.TimepointHeight = &timepoint.Height
	approval.TimepointIndex = &timepoint.Index
	result := as.db.
		Model(&model.Approval{}).
		Where("id = ?", approval.Id).
		Updates(map[string]any{
			"timepoint_height": timepoint.Height,
			"timepoint_index":  timepoint.Index,
		})
	if result.Error != nil {
		log.Warn().Err(result.Error).Msg(fmt.Sprintf("Cannot persist timepoint for approval %d", approval.Id))
	}
}

func (as *approvalService) markFinalized(approval *model.Approval, result *chain.SubmissionResult) {
	approval.Status = model.ApprovalFinalized
	approval.ExecutionTxHash = &result.TxHash
	approval.ExecutionBlockNumber = &result.BlockNumber

	updateResult := as.db.
		Model(&model.Approval{}).
		Where("id = ?", approval.Id).
		Updates(map[string]any{
			"status":                 model.ApprovalFinalized,
			"execution_tx_hash":      result.TxHash,
			"execution_block_number": result.BlockNumber,
		})
	if updateResult.Error != nil {
		log.Warn().Err(updateResult.Error).Msg(fmt.Sprintf("Cannot mark approval %d finalized", approval.Id))
	}
}

func (as *approvalService) deleteProvisional(approval *model.Approval) {
	if result := as.db.Delete(approval); result.Error != nil {
		log.Warn().Err(result.Error).Msg(fmt.Sprintf("Cannot reconcile provisional approval %d", approval.Id))
	}
}

func (as *approvalService) classified(err error, errCtx chainerr.Context) *reject.ProblemWithTrace {
	parsed := chainerr.Classify(err.Error(), errCtx)
	return &reject.ProblemWithTrace{Problem: parsed.Problem(), Cause: err}
}

func (as *approvalService) categoryProblem(category chainerr.Category, errCtx chainerr.Context) *reject.ProblemWithTrace {
	parsed := chainerr.FromCategory(category, errCtx)
	return &reject.ProblemWithTrace{
		Problem: parsed.Problem(),
		Cause:   fmt.Errorf("%s: %s", category, parsed.Description),
	}
}

func otherSignatories(config *model.MultisigConfig, signerAddress string) []string {
	others := make([]string, 0, len(config.Signatories)-1)
	for _, signatory := range config.Signatories {
		if !sameAccount(signatory.Address, signerAddress) {
			others = append(others, signatory.Address)
		}
	}
	return others
}

func sameAccount(a string, b string) bool {
	normalizedA, errA := ss58.Normalize(a)
	normalizedB, errB := ss58.Normalize(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return normalizedA == normalizedB
}

func containsAccount(addresses []string, address string) bool {
	for _, candidate := range addresses {
		if sameAccount(candidate, address) {
			return true
		}
	}
	return false
}

func voteAddresses(votes []model.ApprovalVote) []string {
	addresses := make([]string, 0, len(votes))
	for _, vote := range votes {
		addresses = append(addresses, vote.SignatoryAddress)
	}
	return addresses
}

func callDataIf(execute bool, approval *model.Approval) string {
	if execute {
		return approval.CallData
	}
	return ""
}

func normalizeHash(hash string) string {
	if strings.HasPrefix(hash, "0x") {
		return strings.ToLower(hash)
	}
	return "0x" + strings.ToLower(hash)
}
