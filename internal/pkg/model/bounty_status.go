package model

type BountyStatus string

const (
	BountyProposed        BountyStatus = "PROPOSED"
	BountyApproved        BountyStatus = "APPROVED"
	BountyFunded          BountyStatus = "FUNDED"
	BountyCuratorProposed BountyStatus = "CURATOR_PROPOSED"
	BountyActive          BountyStatus = "ACTIVE"
	BountyPendingPayout   BountyStatus = "PENDING_PAYOUT"
)
