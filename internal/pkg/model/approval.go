package model

type Approval struct {
	Id                   uint64         `gorm:"primaryKey" json:"id"`
	MilestoneId          uint64         `json:"milestoneId"`
	CommitteeId          uint64         `json:"committeeId"`
	Network              string         `json:"network"`
	CallHash             string         `json:"callHash"`
	CallData             string         `json:"callData"`
	TimepointHeight      *uint32        `json:"timepointHeight"`
	TimepointIndex       *uint32        `json:"timepointIndex"`
	InitiatorAddress     string         `json:"initiatorAddress"`
	InitiatorEmail       string         `json:"initiatorEmail"`
	ApprovalWorkflow     WorkflowMode   `json:"approvalWorkflow"`
	Status               ApprovalStatus `json:"status"`
	TimeCreated          int64          `json:"timeCreated"`
	ExecutionTxHash      *string        `json:"executionTxHash"`
	ExecutionBlockNumber *uint64        `json:"executionBlockNumber"`

	Votes []ApprovalVote `gorm:"foreignKey:ApprovalId" json:"votes"`
}

func (Approval) TableName() string {
	return "milestone_approval"
}
