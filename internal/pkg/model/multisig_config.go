package model

type MultisigConfig struct {
	Id                  uint64 `gorm:"primaryKey" json:"id"`
	CommitteeId         uint64 `json:"committeeId"`
	Network             string `json:"network"`
	ParentBountyId      uint32 `json:"parentBountyId"`
	CuratorProxyAddress string `json:"curatorProxyAddress"`
	MultisigAddress     string `json:"multisigAddress"`
	Threshold           uint16 `json:"threshold"`
	ApprovalWorkflow    WorkflowMode `json:"approvalWorkflow"`
	VotingTimeoutBlocks uint32 `json:"votingTimeoutBlocks"`
	AutomaticExecution  bool   `json:"automaticExecution"`

	Signatories []SignatoryMapping `gorm:"foreignKey:MultisigConfigId" json:"signatories"`
}

func (MultisigConfig) TableName() string {
	return "multisig_config"
}

func (mc MultisigConfig) SignatoryAddresses() []string {
	addresses := make([]string, 0, len(mc.Signatories))
	for _, signatory := range mc.Signatories {
		addresses = append(addresses, signatory.Address)
	}
	return addresses
}
