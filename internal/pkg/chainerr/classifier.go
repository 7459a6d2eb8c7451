package chainerr

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
)

type Category string

const (
	CategoryInsufficientBalance     Category = "INSUFFICIENT_BALANCE"
	CategoryBountyNotActive         Category = "BOUNTY_NOT_ACTIVE"
	CategoryBountyInsufficientFunds Category = "BOUNTY_INSUFFICIENT_FUNDS"
	CategoryInvalidSignatory        Category = "INVALID_SIGNATORY"
	CategoryAlreadyApproved         Category = "ALREADY_APPROVED"
	CategoryThresholdNotMet         Category = "THRESHOLD_NOT_MET"
	CategoryTimepointInvalid        Category = "TIMEPOINT_INVALID"
	CategoryTransactionTimeout      Category = "TRANSACTION_TIMEOUT"
	CategoryNetworkError            Category = "NETWORK_ERROR"
	CategoryWasmOrSimulation        Category = "WASM_OR_SIMULATION_ERROR"
	CategoryUserRejected            Category = "USER_REJECTED"
	CategoryCallDataMismatch        Category = "CALL_DATA_MISMATCH"
	CategoryPermissionDenied        Category = "PERMISSION_DENIED"
	CategoryChildWorkflowLimitation Category = "CHILD_WORKFLOW_LIMITATION"
	CategoryUnknown                 Category = "UNKNOWN"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Context carries what the caller already knows about the failed operation so
// classification can attach it alongside anything extracted from the message.
type Context struct {
	Network          string
	BountyId         *uint32
	MilestoneId      *uint64
	SignatoryAddress string
}

type ParsedError struct {
	Category         Category          `json:"category"`
	Severity         Severity          `json:"severity"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	ActionItems      []string          `json:"actionItems"`
	ExtractedContext map[string]string `json:"extractedContext"`
	Raw              string            `json:"raw"`
}

const maxRawLength = 512

type classification struct {
	category    Category
	severity    Severity
	title       string
	description string
	actionItems []string
	patterns    []*regexp.Regexp
}

// Order matters: the first classification whose pattern matches wins, so the
// more specific pallet errors sit above the generic transport ones.
var classifications = []classification{
	{
		category:    CategoryAlreadyApproved,
		severity:    SeverityWarning,
		title:       "Already approved",
		description: "This signatory has already approved the current multisig call.",
		actionItems: []string{"No action needed. Wait for the remaining signatories to vote."},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`multisig\.alreadyapproved`),
			regexp.MustCompile(`already approved`),
		},
	},
	{
		category:    CategoryThresholdNotMet,
		severity:    SeverityInfo,
		title:       "Approval threshold not met",
		description: "The call does not yet have enough approvals to execute.",
		actionItems: []string{"Ask the remaining signatories to cast their votes."},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`multisig\.minimumthreshold`),
			regexp.MustCompile(`threshold not (?:yet )?met`),
			regexp.MustCompile(`not enough approvals`),
		},
	},
	{
		category:    CategoryTimepointInvalid,
		severity:    SeverityError,
		title:       "Invalid timepoint",
		description: "The submitted timepoint does not match the multisig call the chain knows about.",
		actionItems: []string{"Refresh the approval status and retry with the latest call data."},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`multisig\.wrongtimepoint`),
			regexp.MustCompile(`multisig\.unexpectedtimepoint`),
			regexp.MustCompile(`multisig\.notimepoint`),
			regexp.MustCompile(`(?:wrong|unexpected|invalid|missing) timepoint`),
		},
	},
	{
		category:    CategoryCallDataMismatch,
		severity:    SeverityError,
		title:       "Call data mismatch",
		description: "The call data for this vote does not match the call originally initiated on-chain.",
		actionItems: []string{
			"Do not re-derive the call locally.",
			"Refresh the approval and vote on the stored call hash.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`call data (?:mismatch|does not match)`),
			regexp.MustCompile(`call hash mismatch`),
		},
	},
	{
		category:    CategoryBountyInsufficientFunds,
		severity:    SeverityError,
		title:       "Bounty has insufficient funds",
		description: "The parent bounty does not hold enough to cover this payout.",
		actionItems: []string{
			"Top up the parent bounty or reduce the payout amount.",
			"Retry once the bounty balance covers the milestone value.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`childbounties\.insufficientbountybalance`),
			regexp.MustCompile(`insufficient bounty (?:balance|funds)`),
		},
	},
	{
		category:    CategoryBountyNotActive,
		severity:    SeverityError,
		title:       "Bounty is not active",
		description: "The bounty is not in a state that allows payouts.",
		actionItems: []string{
			"Check the bounty status on-chain.",
			"A curator must be assigned and the bounty funded before payouts can run.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`bounties\.unexpectedstatus`),
			regexp.MustCompile(`bounties\.invalidindex`),
			regexp.MustCompile(`bounty (?:is )?not active`),
			regexp.MustCompile(`bounty\s*(?:#?\d+\s*)?not found`),
		},
	},
	{
		category:    CategoryChildWorkflowLimitation,
		severity:    SeverityError,
		title:       "Child bounty limit reached",
		description: "The runtime refused to add another child bounty under this parent.",
		actionItems: []string{"Close claimed child bounties before initiating new payouts."},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`childbounties\.toomanychildbounties`),
			regexp.MustCompile(`too many child bounties`),
		},
	},
	{
		category:    CategoryInvalidSignatory,
		severity:    SeverityError,
		title:       "Not a signatory",
		description: "The signing account is not part of the configured multisig.",
		actionItems: []string{
			"Sign with an account that is listed in the multisig configuration.",
			"If the signatory set changed, update and re-validate the configuration.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`multisig\.notowner`),
			regexp.MustCompile(`multisig\.senderinsignatories`),
			regexp.MustCompile(`not a signatory`),
			regexp.MustCompile(`invalid signatory`),
		},
	},
	{
		category:    CategoryPermissionDenied,
		severity:    SeverityError,
		title:       "Permission denied",
		description: "The account is not allowed to perform this call, usually a missing proxy relationship.",
		actionItems: []string{
			"Verify the curator proxy still delegates to the multisig.",
			"Re-run bounty structure discovery to confirm the controlling account.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`proxy\.notproxy`),
			regexp.MustCompile(`proxy\.unproxyable`),
			regexp.MustCompile(`badorigin`),
			regexp.MustCompile(`permission denied`),
		},
	},
	{
		category:    CategoryInsufficientBalance,
		severity:    SeverityError,
		title:       "Insufficient balance",
		description: "The signing account cannot cover the transaction fees or the multisig deposit.",
		actionItems: []string{
			"Fund the signing account and retry.",
			"The first approval reserves a multisig deposit on top of fees.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`inability to pay some fees`),
			regexp.MustCompile(`balances\.insufficientbalance`),
			regexp.MustCompile(`balance too low`),
			regexp.MustCompile(`insufficient (?:account )?balance`),
			regexp.MustCompile(`1010:`),
		},
	},
	{
		category:    CategoryUserRejected,
		severity:    SeverityWarning,
		title:       "Signature rejected",
		description: "The signer dismissed the wallet prompt without signing.",
		actionItems: []string{"Retry and approve the signature request in the wallet."},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`rejected by user`),
			regexp.MustCompile(`user rejected`),
			regexp.MustCompile(`cancelled(?: by user)?`),
			regexp.MustCompile(`signature was rejected`),
		},
	},
	{
		category:    CategoryTransactionTimeout,
		severity:    SeverityError,
		title:       "Transaction timed out",
		description: "The transaction was not included in a block before the wait deadline.",
		actionItems: []string{
			"Check a block explorer before retrying; the call may still land.",
			"Retry the approval if the call is no longer pending.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`transaction timeout`),
			regexp.MustCompile(`timed out waiting`),
			regexp.MustCompile(`deadline exceeded`),
		},
	},
	{
		category:    CategoryWasmOrSimulation,
		severity:    SeverityError,
		title:       "Runtime execution error",
		description: "The runtime rejected the call during execution or dry-run simulation.",
		actionItems: []string{
			"Inspect the dispatch error details.",
			"Verify the call data against the current runtime version.",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`wasm`),
			regexp.MustCompile(`panicked`),
			regexp.MustCompile(`unreachable instruction`),
			regexp.MustCompile(`simulation failed`),
		},
	},
	{
		category:    CategoryNetworkError,
		severity:    SeverityError,
		title:       "Network error",
		description: "The node could not be reached or dropped the connection.",
		actionItems: []string{"Retry. If the problem persists, switch RPC endpoints."},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`connection (?:refused|reset|closed)`),
			regexp.MustCompile(`websocket`),
			regexp.MustCompile(`no such host`),
			regexp.MustCompile(`broken pipe`),
			regexp.MustCompile(`network error`),
			regexp.MustCompile(`rpc error`),
		},
	},
}

var (
	bountyIdPattern  = regexp.MustCompile(`bounty\s*#?(\d+)`)
	requiredPattern  = regexp.MustCompile(`required[:\s]+([\d.]+)`)
	availablePattern = regexp.MustCompile(`(?:available|current|free)[:\s]+([\d.]+)`)
	approvalsPattern = regexp.MustCompile(`(\d+)\s*(?:of|/)\s*(\d+)\s*approvals`)
)

// Classify maps raw failure output from the chain, the wallet, or the RPC
// transport onto the closed error taxonomy. It never fails: anything
// unrecognized becomes CategoryUnknown with the raw message preserved.
func Classify(raw string, errCtx Context) ParsedError {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	for _, candidate := range classifications {
		for _, pattern := range candidate.patterns {
			if pattern.MatchString(normalized) {
				return ParsedError{
					Category:         candidate.category,
					Severity:         candidate.severity,
					Title:            candidate.title,
					Description:      candidate.description,
					ActionItems:      candidate.actionItems,
					ExtractedContext: extractContext(normalized, errCtx),
					Raw:              truncate(raw),
				}
			}
		}
	}

	return ParsedError{
		Category:         CategoryUnknown,
		Severity:         SeverityError,
		Title:            "Unknown error",
		Description:      "The failure did not match any known chain or wallet error.",
		ActionItems:      []string{"Check the raw message and report it if it keeps happening."},
		ExtractedContext: extractContext(normalized, errCtx),
		Raw:              truncate(raw),
	}
}

// FromCategory builds a ParsedError for a condition the engine detected
// itself, where there is no raw chain message to pattern-match.
func FromCategory(category Category, errCtx Context) ParsedError {
	for _, candidate := range classifications {
		if candidate.category == category {
			return ParsedError{
				Category:         candidate.category,
				Severity:         candidate.severity,
				Title:            candidate.title,
				Description:      candidate.description,
				ActionItems:      candidate.actionItems,
				ExtractedContext: extractContext("", errCtx),
			}
		}
	}
	return Classify(string(category), errCtx)
}

func extractContext(normalized string, errCtx Context) map[string]string {
	extracted := map[string]string{}

	if errCtx.Network != "" {
		extracted["network"] = errCtx.Network
	}
	if errCtx.BountyId != nil {
		extracted["bountyId"] = fmt.Sprintf("%d", *errCtx.BountyId)
	}
	if errCtx.MilestoneId != nil {
		extracted["milestoneId"] = fmt.Sprintf("%d", *errCtx.MilestoneId)
	}
	if errCtx.SignatoryAddress != "" {
		extracted["signatoryAddress"] = errCtx.SignatoryAddress
	}

	if match := bountyIdPattern.FindStringSubmatch(normalized); match != nil {
		extracted["bountyId"] = match[1]
	}
	if match := requiredPattern.FindStringSubmatch(normalized); match != nil {
		extracted["requiredBalance"] = match[1]
	}
	if match := availablePattern.FindStringSubmatch(normalized); match != nil {
		extracted["currentBalance"] = match[1]
	}
	if match := approvalsPattern.FindStringSubmatch(normalized); match != nil {
		extracted["currentApprovals"] = match[1]
		extracted["threshold"] = match[2]
	}

	return extracted
}

func truncate(raw string) string {
	if len(raw) <= maxRawLength {
		return raw
	}
	return raw[:maxRawLength]
}

// Problem adapts a classified error to the reject surface handed to the UI.
func (pe ParsedError) Problem() reject.Problem {
	status := http.StatusBadGateway
	switch pe.Severity {
	case SeverityWarning, SeverityInfo:
		status = http.StatusConflict
	}
	switch pe.Category {
	case CategoryInvalidSignatory, CategoryPermissionDenied:
		status = http.StatusForbidden
	case CategoryCallDataMismatch, CategoryTimepointInvalid:
		status = http.StatusConflict
	}

	problem := reject.NewProblem().
		WithTitle(pe.Title).
		WithStatus(status).
		WithCode("error.chain." + strings.ToLower(string(pe.Category))).
		WithDetail(pe.Description)

	for key, value := range pe.ExtractedContext {
		problem = problem.WithParam(key, value)
	}

	return problem.Build()
}
