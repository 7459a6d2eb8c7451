package model

type ApprovalStatus string

const (
	ApprovalActive    ApprovalStatus = "ACTIVE"
	ApprovalFinalized ApprovalStatus = "FINALIZED"
)
