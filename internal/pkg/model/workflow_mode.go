package model

// WorkflowMode controls how the threshold-meeting vote is handled. In MERGED
// mode the final vote carries the full call data and executes in the same
// extrinsic; in SEPARATED mode execution is an explicit follow-up step.
type WorkflowMode string

const (
	WorkflowMerged    WorkflowMode = "MERGED"
	WorkflowSeparated WorkflowMode = "SEPARATED"
)
