package approval

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/model"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	aliceAddress   = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bobAddress     = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	charlieAddress = "5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y"
	daveAddress    = "5DAAnrj7VHTznn2AWBemMuyBwZWs6FNFjdyVXUeYum3PTXFy"
)

var testCallData = "0x1a055901000000"

func testCallHash() string {
	raw, _ := hex.DecodeString(testCallData[2:])
	digest := blake2b.Sum256(raw)
	return "0x" + hex.EncodeToString(digest[:])
}

type fakeChain struct {
	chain.Client

	bountyFn          func(network string, bountyId uint32) (*chain.Bounty, error)
	balanceFn         func(address string) (string, error)
	buildPayoutFn     func(request chain.PayoutCallRequest) (*chain.PayoutCall, error)
	pendingFn         func(multisigAddress string, callHash string) (*chain.PendingMultisig, error)
	buildExtrinsicFn  func(signerAddress string, params chain.ApprovalExtrinsicParams) (*chain.UnsignedExtrinsic, error)
	submitFn          func(extrinsic *chain.UnsignedExtrinsic, signature []byte) (*chain.SubmissionResult, error)
	submittedParams   []chain.ApprovalExtrinsicParams
	submittedPayloads []string
}

func (f *fakeChain) Bounty(_ context.Context, network string, bountyId uint32) (*chain.Bounty, error) {
	if f.bountyFn != nil {
		return f.bountyFn(network, bountyId)
	}
	return &chain.Bounty{Id: bountyId, Status: model.BountyActive, Curator: aliceAddress}, nil
}

func (f *fakeChain) AccountBalance(_ context.Context, _ string, address string) (string, error) {
	if f.balanceFn != nil {
		return f.balanceFn(address)
	}
	return "10000000000", nil
}

func (f *fakeChain) BuildPayoutCall(_ context.Context, _ string, request chain.PayoutCallRequest) (*chain.PayoutCall, error) {
	if f.buildPayoutFn != nil {
		return f.buildPayoutFn(request)
	}
	return &chain.PayoutCall{CallHash: testCallHash(), CallData: testCallData}, nil
}

func (f *fakeChain) PendingMultisigCall(_ context.Context, _ string, multisigAddress string, callHash string) (*chain.PendingMultisig, error) {
	if f.pendingFn != nil {
		return f.pendingFn(multisigAddress, callHash)
	}
	return nil, nil
}

func (f *fakeChain) BuildApprovalExtrinsic(_ context.Context, _ string, signerAddress string, params chain.ApprovalExtrinsicParams) (*chain.UnsignedExtrinsic, error) {
	f.submittedParams = append(f.submittedParams, params)
	if f.buildExtrinsicFn != nil {
		return f.buildExtrinsicFn(signerAddress, params)
	}
	return &chain.UnsignedExtrinsic{SignerAddress: signerAddress, Payload: "payload-" + params.CallHash}, nil
}

func (f *fakeChain) SubmitExtrinsic(_ context.Context, _ string, extrinsic *chain.UnsignedExtrinsic, signature []byte) (*chain.SubmissionResult, error) {
	f.submittedPayloads = append(f.submittedPayloads, extrinsic.Payload)
	if f.submitFn != nil {
		return f.submitFn(extrinsic, signature)
	}
	return &chain.SubmissionResult{TxHash: "0xsubmitted", BlockNumber: 100, ExtrinsicIndex: 2}, nil
}

type fakeSigner struct {
	address string
	reject  bool
	err     error
}

func (s *fakeSigner) Address() string {
	return s.address
}

func (s *fakeSigner) Sign(_ context.Context, payload []byte) ([]byte, error) {
	if s.reject {
		return nil, chain.ErrUserRejected
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("signed:"), payload...), nil
}

type fakeSigners struct {
	rejecting map[string]bool
}

func (f *fakeSigners) SignerFor(address string) chain.Signer {
	return &fakeSigner{address: address, reject: f.rejecting[address]}
}

func newTestDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.MultisigConfig{},
		&model.SignatoryMapping{},
		&model.Approval{},
		&model.ApprovalVote{},
	))
	return db
}

func seedConfig(t *testing.T, db *gorm.DB, threshold uint16, workflow model.WorkflowMode, autoExecute bool) *model.MultisigConfig {
	config := &model.MultisigConfig{
		CommitteeId:         7,
		Network:             "polkadot",
		ParentBountyId:      19,
		CuratorProxyAddress: daveAddress,
		MultisigAddress:     "5DjYJStmdZ2rcqXbXGX7TW85JsrW6uG4y9MUcLq2BoPMpRA7",
		Threshold:           threshold,
		ApprovalWorkflow:    workflow,
		AutomaticExecution:  autoExecute,
	}
	require.NoError(t, db.Create(config).Error)

	for i, address := range []string{aliceAddress, bobAddress, charlieAddress} {
		require.NoError(t, db.Create(&model.SignatoryMapping{
			MultisigConfigId: config.Id,
			Address:          address,
			DisplayOrder:     i,
		}).Error)
	}
	return config
}

func newService(db *gorm.DB, chainClient chain.Client) *approvalService {
	return &approvalService{
		db:      db,
		chain:   chainClient,
		signers: &fakeSigners{rejecting: map[string]bool{}},
		bridge:  &approvalEventBridge{notificationHub: ws.NewNotificationHub()},
	}
}

func initiateRequest(signer string) InitiateRequest {
	return InitiateRequest{
		CommitteeId:        7,
		ChildBountyId:      3,
		BeneficiaryAddress: daveAddress,
		Amount:             "1500000000000",
		SignerAddress:      signer,
		InitiatorEmail:     "signer@committee.example",
	}
}

func TestInitiateCreatesActiveApprovalWithInitiatorVote(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{})

	approval, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))

	require.Nil(t, problem)
	assert.Equal(t, model.ApprovalActive, approval.Status)
	assert.Equal(t, testCallHash(), approval.CallHash)
	assert.Equal(t, aliceAddress, approval.InitiatorAddress)
	assert.Equal(t, "signer@committee.example", approval.InitiatorEmail)
	require.NotNil(t, approval.TimepointHeight)
	assert.Equal(t, uint32(100), *approval.TimepointHeight)
	require.Len(t, approval.Votes, 1)
	assert.Equal(t, aliceAddress, approval.Votes[0].SignatoryAddress)

	status, problem := service.GetApprovalStatus(42)
	require.Nil(t, problem)
	assert.Equal(t, "active", status.Status)
}

func TestInitiateThresholdOneFinalizesImmediately(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 1, model.WorkflowMerged, false)
	chainClient := &fakeChain{}
	service := newService(db, chainClient)

	approval, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))

	require.Nil(t, problem)
	assert.Equal(t, model.ApprovalFinalized, approval.Status)
	require.NotNil(t, approval.ExecutionTxHash)
	assert.Equal(t, "0xsubmitted", *approval.ExecutionTxHash)

	require.Len(t, chainClient.submittedParams, 1)
	assert.True(t, chainClient.submittedParams[0].Execute)
	assert.Equal(t, testCallData, chainClient.submittedParams[0].CallData)
}

func TestInitiateRejectsNonSignatory(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{})

	_, problem := service.Initiate(context.Background(), 42, initiateRequest(daveAddress))

	require.NotNil(t, problem)
	assert.Equal(t, 403, problem.Problem.Status)
	assert.Equal(t, "error.chain.invalid_signatory", problem.Problem.Code)
}

func TestInitiateRejectsEmptySignerAccount(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{
		balanceFn: func(_ string) (string, error) {
			return "0", nil
		},
	})

	_, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))

	require.NotNil(t, problem)
	assert.Equal(t, "error.chain.insufficient_balance", problem.Problem.Code)
}

func TestInitiateRejectsInactiveBounty(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{
		bountyFn: func(_ string, bountyId uint32) (*chain.Bounty, error) {
			return &chain.Bounty{Id: bountyId, Status: model.BountyProposed}, nil
		},
	})

	_, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))

	require.NotNil(t, problem)
	assert.Equal(t, "error.chain.bounty_not_active", problem.Problem.Code)
}

func TestInitiateUserRejectionRemovesProvisionalRecord(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{})
	service.signers = &fakeSigners{rejecting: map[string]bool{aliceAddress: true}}

	_, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))

	require.NotNil(t, problem)
	assert.Equal(t, "error.chain.user_rejected", problem.Problem.Code)

	status, statusProblem := service.GetApprovalStatus(42)
	require.Nil(t, statusProblem)
	assert.Equal(t, "none", status.Status)
}

func TestInitiateAmbiguousFailureKeepsRecordWhenChainHasCall(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 2, model.WorkflowMerged, false)
	chainClient := &fakeChain{
		submitFn: func(_ *chain.UnsignedExtrinsic, _ []byte) (*chain.SubmissionResult, error) {
			return nil, fmt.Errorf("connection reset by peer")
		},
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 88, Index: 4},
				Depositor: aliceAddress,
				Approvals: []string{aliceAddress},
			}, nil
		},
	}
	service := newService(db, chainClient)

	approval, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))

	require.Nil(t, problem)
	assert.Equal(t, model.ApprovalActive, approval.Status)
	require.NotNil(t, approval.TimepointHeight)
	assert.Equal(t, uint32(88), *approval.TimepointHeight)
	require.Len(t, approval.Votes, 1)
}

func TestInitiateExecutingAmbiguousFailureKeepsRecord(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 1, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{
		submitFn: func(_ *chain.UnsignedExtrinsic, _ []byte) (*chain.SubmissionResult, error) {
			return nil, fmt.Errorf("timed out waiting for inclusion")
		},
	})

	// an executing call leaves no pending multisig entry behind, so the
	// absent entry must not be read as proof the payout never happened
	_, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))
	require.NotNil(t, problem)

	status, statusProblem := service.GetApprovalStatus(42)
	require.Nil(t, statusProblem)
	assert.Equal(t, "active", status.Status)
	require.Len(t, status.Approval.Votes, 1)
}

func TestInitiateWithActiveApprovalFoldsIntoVote(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 2, model.WorkflowMerged, false)
	chainClient := &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Depositor: aliceAddress,
				Approvals: []string{aliceAddress},
			}, nil
		},
	}
	service := newService(db, chainClient)

	first, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))
	require.Nil(t, problem)

	// second signatory initiates the same milestone; with threshold 2 and a
	// merged workflow the folded vote meets the threshold and executes
	second, problem := service.Initiate(context.Background(), 42, initiateRequest(bobAddress))
	require.Nil(t, problem)

	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, model.ApprovalFinalized, second.Status)
	require.Len(t, second.Votes, 2)
}

func TestInitiateRaceLoserInsideTransactionFoldsIntoVote(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowMerged, false)

	// a competing initiate lands between the pre-check and the locked insert
	var winner *model.Approval
	chainClient := &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress},
			}, nil
		},
	}
	chainClient.buildPayoutFn = func(_ chain.PayoutCallRequest) (*chain.PayoutCall, error) {
		if winner == nil {
			winner = seedActiveApproval(t, db, config, 42)
		}
		return &chain.PayoutCall{CallHash: testCallHash(), CallData: testCallData}, nil
	}
	service := newService(db, chainClient)

	folded, problem := service.Initiate(context.Background(), 42, initiateRequest(bobAddress))

	require.Nil(t, problem)
	assert.Equal(t, winner.Id, folded.Id)
	assert.Equal(t, model.ApprovalFinalized, folded.Status)

	var approvalCount int64
	db.Model(&model.Approval{}).Where("milestone_id = ?", 42).Count(&approvalCount)
	assert.Equal(t, int64(1), approvalCount)
}

func TestCastVoteOnFinalizedApprovalRejected(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{})

	approval := seedActiveApproval(t, db, config, 42)
	require.NoError(t, db.Model(approval).Update("status", model.ApprovalFinalized).Error)

	_, problem := service.CastVote(context.Background(), approval.Id, bobAddress)

	require.NotNil(t, problem)
	assert.Equal(t, 409, problem.Problem.Status)
	assert.Equal(t, "error.approval.no-longer-active", problem.Problem.Code)
}

func TestCastVoteRejectsDuplicateLocalVote(t *testing.T) {
	db := newTestDb(t)
	seedConfig(t, db, 3, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{})

	approval, problem := service.Initiate(context.Background(), 42, initiateRequest(aliceAddress))
	require.Nil(t, problem)

	_, problem = service.CastVote(context.Background(), approval.Id, aliceAddress)

	require.NotNil(t, problem)
	assert.Equal(t, "error.chain.already_approved", problem.Problem.Code)
}

func TestCastVoteRejectsChainReportedApprover(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 3, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Depositor: aliceAddress,
				Approvals: []string{aliceAddress, bobAddress},
			}, nil
		},
	})

	approval := seedActiveApproval(t, db, config, 42)

	// bob never voted through this coordinator but the chain counts him
	_, problem := service.CastVote(context.Background(), approval.Id, bobAddress)

	require.NotNil(t, problem)
	assert.Equal(t, "error.chain.already_approved", problem.Problem.Code)
}

func TestCastVoteFailsWhenCallNoLongerPending(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{})

	approval := seedActiveApproval(t, db, config, 42)

	_, problem := service.CastVote(context.Background(), approval.Id, bobAddress)

	require.NotNil(t, problem)
	assert.Equal(t, 409, problem.Problem.Status)
	assert.Equal(t, "error.approval.call-no-longer-pending", problem.Problem.Code)
}

func TestCastVoteDetectsCallDataTampering(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress},
			}, nil
		},
	})

	approval := seedActiveApproval(t, db, config, 42)
	require.NoError(t, db.Model(approval).Update("call_data", "0xdeadbeef").Error)

	_, problem := service.CastVote(context.Background(), approval.Id, bobAddress)

	require.NotNil(t, problem)
	assert.Equal(t, "error.chain.call_data_mismatch", problem.Problem.Code)
}

func TestCastVoteMergedWorkflowExecutesAtThreshold(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowMerged, false)
	chainClient := &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress},
			}, nil
		},
	}
	service := newService(db, chainClient)

	approval := seedActiveApproval(t, db, config, 42)

	_, problem := service.CastVote(context.Background(), approval.Id, bobAddress)
	require.Nil(t, problem)

	reloaded, reloadProblem := service.reloadApproval(approval.Id)
	require.Nil(t, reloadProblem)
	assert.Equal(t, model.ApprovalFinalized, reloaded.Status)

	require.Len(t, chainClient.submittedParams, 1)
	assert.True(t, chainClient.submittedParams[0].Execute)
	assert.Equal(t, testCallData, chainClient.submittedParams[0].CallData)
	require.NotNil(t, chainClient.submittedParams[0].Timepoint)
	assert.Equal(t, uint32(100), chainClient.submittedParams[0].Timepoint.Height)
}

func TestCastVoteSeparatedWorkflowLeavesApprovalActive(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowSeparated, false)
	chainClient := &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress},
			}, nil
		},
	}
	service := newService(db, chainClient)

	approval := seedActiveApproval(t, db, config, 42)

	vote, problem := service.CastVote(context.Background(), approval.Id, bobAddress)
	require.Nil(t, problem)
	assert.Equal(t, bobAddress, vote.SignatoryAddress)

	reloaded, reloadProblem := service.reloadApproval(approval.Id)
	require.Nil(t, reloadProblem)
	assert.Equal(t, model.ApprovalActive, reloaded.Status)

	// approval-only vote must not carry call data
	require.Len(t, chainClient.submittedParams, 1)
	assert.False(t, chainClient.submittedParams[0].Execute)
	assert.Empty(t, chainClient.submittedParams[0].CallData)
}

func TestCastVoteAutomaticExecutionUsesExecutorSigner(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowSeparated, true)
	chainClient := &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress},
			}, nil
		},
	}
	service := newService(db, chainClient)
	service.executor = &fakeSigner{address: charlieAddress}

	approval := seedActiveApproval(t, db, config, 42)

	_, problem := service.CastVote(context.Background(), approval.Id, bobAddress)
	require.Nil(t, problem)

	reloaded, reloadProblem := service.reloadApproval(approval.Id)
	require.Nil(t, reloadProblem)
	assert.Equal(t, model.ApprovalFinalized, reloaded.Status)

	var executorVotes int64
	db.Model(&model.ApprovalVote{}).
		Where("approval_id = ? AND signature_type = ?", approval.Id, signatureTypeKms).
		Count(&executorVotes)
	assert.Equal(t, int64(1), executorVotes)
}

func TestFinalizeRejectsBelowThreshold(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 3, model.WorkflowSeparated, false)
	service := newService(db, &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress},
			}, nil
		},
	})

	approval := seedActiveApproval(t, db, config, 42)

	_, problem := service.Finalize(context.Background(), approval.Id, bobAddress)

	require.NotNil(t, problem)
	assert.Equal(t, "error.chain.threshold_not_met", problem.Problem.Code)
}

func TestFinalizeExecutesWithEnoughApprovals(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowSeparated, false)
	chainClient := &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress, bobAddress},
			}, nil
		},
	}
	service := newService(db, chainClient)

	approval := seedActiveApproval(t, db, config, 42)

	finalized, problem := service.Finalize(context.Background(), approval.Id, charlieAddress)

	require.Nil(t, problem)
	assert.Equal(t, model.ApprovalFinalized, finalized.Status)
	require.NotNil(t, finalized.ExecutionTxHash)
	assert.Equal(t, "0xsubmitted", *finalized.ExecutionTxHash)
	require.NotNil(t, finalized.ExecutionBlockNumber)
	assert.Equal(t, uint64(100), *finalized.ExecutionBlockNumber)
}

func TestFinalizeIsIdempotentOnFinalizedApproval(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowSeparated, false)
	chainClient := &fakeChain{}
	service := newService(db, chainClient)

	approval := seedActiveApproval(t, db, config, 42)
	require.NoError(t, db.Model(approval).Update("status", model.ApprovalFinalized).Error)

	finalized, problem := service.Finalize(context.Background(), approval.Id, aliceAddress)

	require.Nil(t, problem)
	assert.Equal(t, model.ApprovalFinalized, finalized.Status)
	assert.Empty(t, chainClient.submittedPayloads)
}

func TestRetryResumesAsVoteWhenChainMissedIt(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowMerged, false)
	chainClient := &fakeChain{
		pendingFn: func(_ string, callHash string) (*chain.PendingMultisig, error) {
			return &chain.PendingMultisig{
				CallHash:  callHash,
				Timepoint: chain.Timepoint{Height: 100, Index: 2},
				Approvals: []string{aliceAddress},
			}, nil
		},
	}
	service := newService(db, chainClient)

	approval := seedActiveApproval(t, db, config, 42)

	status, problem := service.Retry(context.Background(), approval.Id, bobAddress)

	require.Nil(t, problem)
	assert.Equal(t, "finalized", status.Status)
}

func TestRetryFailsWhenCallExpired(t *testing.T) {
	db := newTestDb(t)
	config := seedConfig(t, db, 2, model.WorkflowMerged, false)
	service := newService(db, &fakeChain{})

	approval := seedActiveApproval(t, db, config, 42)

	_, problem := service.Retry(context.Background(), approval.Id, bobAddress)

	require.NotNil(t, problem)
	assert.Equal(t, "error.approval.call-no-longer-pending", problem.Problem.Code)
}

func seedActiveApproval(t *testing.T, db *gorm.DB, config *model.MultisigConfig, milestoneId uint64) *model.Approval {
	height := uint32(100)
	index := uint32(2)
	approval := &model.Approval{
		MilestoneId:      milestoneId,
		CommitteeId:      config.CommitteeId,
		Network:          config.Network,
		CallHash:         testCallHash(),
		CallData:         testCallData,
		TimepointHeight:  &height,
		TimepointIndex:   &index,
		InitiatorAddress: aliceAddress,
		ApprovalWorkflow: config.ApprovalWorkflow,
		Status:           model.ApprovalActive,
		TimeCreated:      1700000000000,
	}
	require.NoError(t, db.Create(approval).Error)
	require.NoError(t, db.Create(&model.ApprovalVote{
		ApprovalId:       approval.Id,
		SignatoryAddress: aliceAddress,
		SignatureType:    signatureTypeWallet,
		TxHash:           "0xinitiated",
		TimeCreated:      1700000000000,
	}).Error)
	return approval
}
