package chain

import "github.com/grantflow-labs/grantflow-backend/internal/pkg/model"

type Bounty struct {
	Id          uint32             `json:"id"`
	Status      model.BountyStatus `json:"status"`
	Description string             `json:"description"`
	Value       string             `json:"value"`
	Curator     string             `json:"curator"`
}

type ProxyDefinition struct {
	Delegate  string `json:"delegate"`
	ProxyType string `json:"proxyType"`
	Delay     uint32 `json:"delay"`
}

// Timepoint identifies when a multisig call was first submitted. Later
// approvals must reference it exactly.
type Timepoint struct {
	Height uint32 `json:"height"`
	Index  uint32 `json:"index"`
}

// PendingMultisig mirrors the multisig pallet storage entry for an
// in-flight call.
type PendingMultisig struct {
	CallHash  string    `json:"callHash"`
	Timepoint Timepoint `json:"timepoint"`
	Depositor string    `json:"depositor"`
	Approvals []string  `json:"approvals"`
}

type PayoutCallRequest struct {
	ParentBountyId      uint32 `json:"parentBountyId"`
	ChildBountyId       uint32 `json:"childBountyId"`
	BeneficiaryAddress  string `json:"beneficiaryAddress"`
	Amount              string `json:"amount"`
	CuratorProxyAddress string `json:"curatorProxyAddress"`
}

// PayoutCall is the encoded payout transfer, proxied through the curator
// account and ready to be wrapped in a multisig approval.
type PayoutCall struct {
	CallHash string `json:"callHash"`
	CallData string `json:"callData"`
}

type ApprovalExtrinsicParams struct {
	MultisigAddress  string     `json:"multisigAddress"`
	Threshold        uint16     `json:"threshold"`
	OtherSignatories []string   `json:"otherSignatories"`
	Timepoint        *Timepoint `json:"timepoint"`
	CallHash         string     `json:"callHash"`
	// CallData is only set on the executing submission; approval-only votes
	// carry just the hash.
	CallData string `json:"callData"`
	Execute  bool   `json:"execute"`
}

type UnsignedExtrinsic struct {
	SignerAddress string `json:"signerAddress"`
	Payload       string `json:"payload"`
	Nonce         uint64 `json:"nonce"`
}

type SubmissionResult struct {
	TxHash         string `json:"txHash"`
	BlockNumber    uint64 `json:"blockNumber"`
	ExtrinsicIndex uint32 `json:"extrinsicIndex"`
}
