package multisig

import (
	"fmt"
	"net/http"
	"time"

	"github.com/grantflow-labs/grantflow-backend/internal/pkg/model"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ss58"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	configAddressMismatch = "error.multisig.address-mismatch"
	configTooFewSigners   = "error.multisig.too-few-signatories"
	configDuplicateSigner = "error.multisig.duplicate-signatory"
	configInvalidInput    = "error.multisig.invalid-input"
)

type multisigService struct {
	db *gorm.DB
}

type SignatoryRequest struct {
	Address      string  `json:"address"`
	LinkedUserId *uint64 `json:"linkedUserId"`
}

type SaveConfigRequest struct {
	Network             string             `json:"network"`
	ParentBountyId      uint32             `json:"parentBountyId"`
	CuratorProxyAddress string             `json:"curatorProxyAddress"`
	MultisigAddress     string             `json:"multisigAddress"`
	Signatories         []SignatoryRequest `json:"signatories"`
	Threshold           uint16             `json:"threshold"`
	ApprovalWorkflow    model.WorkflowMode `json:"approvalWorkflow"`
	VotingTimeoutBlocks uint32             `json:"votingTimeoutBlocks"`
	AutomaticExecution  bool               `json:"automaticExecution"`
}

func (ms *multisigService) validate(expected string, signatories []string, threshold uint16) (*ValidationResult, *reject.ProblemWithTrace) {
	result, err := Validate(expected, signatories, threshold)
	if err != nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Cannot validate multisig configuration").
				WithStatus(http.StatusBadRequest).
				WithCode(configInvalidInput).
				WithDetail(err.Error()).
				Build(),
			Cause: err,
		}
	}
	return &result, nil
}

// saveConfig persists a committee multisig configuration. The derivation
// invariant is enforced here on every save, not assumed from earlier
// validation calls.
func (ms *multisigService) saveConfig(committeeId uint64, request SaveConfigRequest) (*model.MultisigConfig, *reject.ProblemWithTrace) {
	if len(request.Signatories) < 2 {
		err := fmt.Errorf("multisig configuration needs at least 2 signatories, got %d", len(request.Signatories))
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Too few signatories").
				WithStatus(http.StatusBadRequest).
				WithCode(configTooFewSigners).
				Build(),
			Cause: err,
		}
	}

	normalized := make([]string, 0, len(request.Signatories))
	seen := map[string]bool{}
	for _, signatory := range request.Signatories {
		address, err := ss58.Normalize(signatory.Address)
		if err != nil {
			return nil, &reject.ProblemWithTrace{
				Problem: reject.NewProblem().
					WithTitle("Malformed signatory address").
					WithStatus(http.StatusBadRequest).
					WithCode(configInvalidInput).
					WithDetail(signatory.Address).
					Build(),
				Cause: err,
			}
		}
		if seen[address] {
			err := fmt.Errorf("signatory %s listed twice", address)
			return nil, &reject.ProblemWithTrace{
				Problem: reject.NewProblem().
					WithTitle("Duplicate signatory").
					WithStatus(http.StatusBadRequest).
					WithCode(configDuplicateSigner).
					WithDetail(address).
					Build(),
				Cause: err,
			}
		}
		seen[address] = true
		normalized = append(normalized, address)
	}

	validation, problem := ms.validate(request.MultisigAddress, normalized, request.Threshold)
	if problem != nil {
		return nil, problem
	}
	if !validation.Valid {
		err := fmt.Errorf("configured multisig address does not match derivation")
		log.Warn().Msg(fmt.Sprintf(
			"Refusing multisig config for committee %d: computed %s, expected %s",
			committeeId, validation.ComputedAddress, validation.ExpectedAddress))
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Multisig address mismatch").
				WithStatus(http.StatusUnprocessableEntity).
				WithCode(configAddressMismatch).
				WithParam("computedAddress", validation.ComputedAddress).
				WithParam("expectedAddress", validation.ExpectedAddress).
				Build(),
			Cause: err,
		}
	}

	workflow := request.ApprovalWorkflow
	if workflow == "" {
		workflow = model.WorkflowMerged
	}

	config := &model.MultisigConfig{
		CommitteeId:         committeeId,
		Network:             request.Network,
		ParentBountyId:      request.ParentBountyId,
		CuratorProxyAddress: request.CuratorProxyAddress,
		MultisigAddress:     validation.ExpectedAddress,
		Threshold:           request.Threshold,
		ApprovalWorkflow:    workflow,
		VotingTimeoutBlocks: request.VotingTimeoutBlocks,
		AutomaticExecution:  request.AutomaticExecution,
	}
	for i, address := range normalized {
		config.Signatories = append(config.Signatories, model.SignatoryMapping{
			Address:      address,
			LinkedUserId: request.Signatories[i].LinkedUserId,
			DisplayOrder: i,
		})
	}

	err := ms.db.Transaction(func(tx *gorm.DB) error {
		var existing model.MultisigConfig
		result := tx.Where("committee_id = ?", committeeId).First(&existing)
		if result.Error == nil {
			if deleteResult := tx.Where("multisig_config_id = ?", existing.Id).Delete(&model.SignatoryMapping{}); deleteResult.Error != nil {
				return deleteResult.Error
			}
			if deleteResult := tx.Delete(&existing); deleteResult.Error != nil {
				return deleteResult.Error
			}
		} else if result.Error != gorm.ErrRecordNotFound {
			return result.Error
		}

		return tx.Create(config).Error
	})

	if err != nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.UnexpectedProblem(err),
			Cause:   err,
		}
	}

	log.Info().Msg(fmt.Sprintf("Saved multisig config for committee %d, multisig %s (%d of %d) at %s",
		committeeId, config.MultisigAddress, config.Threshold, len(config.Signatories),
		time.Now().UTC().Format(time.RFC3339)))

	return config, nil
}

func (ms *multisigService) getConfig(committeeId uint64) (*model.MultisigConfig, *reject.ProblemWithTrace) {
	var config model.MultisigConfig
	result := ms.db.
		Preload("Signatories", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order")
		}).
		Where("committee_id = ?", committeeId).
		First(&config)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NotFoundProblem(),
			Cause:   result.Error,
		}
	}
	if result.Error != nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.UnexpectedProblem(result.Error),
			Cause:   result.Error,
		}
	}

	return &config, nil
}
