package model

type ApprovalVote struct {
	Id               uint64 `gorm:"primaryKey" json:"id"`
	ApprovalId       uint64 `json:"approvalId"`
	SignatoryAddress string `json:"signatoryAddress"`
	SignatureType    string `json:"signatureType"`
	TxHash           string `json:"txHash"`
	TimeCreated      int64  `json:"timeCreated"`
}

func (ApprovalVote) TableName() string {
	return "approval_vote"
}
