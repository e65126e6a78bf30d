// Package migration contains the business logic for copying contract
// verification from one block explorer to another: metadata conversion,
// submission, status polling, and the per-address pipeline orchestration.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/veriport/pkg/explorer"
)

// Common errors returned by the migration pipeline.
var (
	ErrUnableToVerify     = errors.New("unable to verify")
	ErrVerificationFailed = errors.New("contract failed to verify")
	ErrTimedOut           = errors.New("verification timed out")
	ErrInvalidAddress     = errors.New("invalid contract address")
)

// SourceExplorer is the source-side explorer operation the pipeline needs
type SourceExplorer interface {
	GetSourceCode(ctx context.Context, address string) (*explorer.SourceMetadata, error)
}

// TargetExplorer is the target-side explorer operations the pipeline needs
type TargetExplorer interface {
	VerifySourceCode(ctx context.Context, req *explorer.VerifyRequest) (*explorer.SubmitResponse, error)
	CheckVerifyStatus(ctx context.Context, guid string) (*explorer.VerifyStatus, error)
}

// Outcome is the terminal result of migrating one contract
type Outcome int

const (
	// OutcomeUnknown means the pipeline failed before reaching a
	// verification verdict (fetch, conversion, submission or transport error)
	OutcomeUnknown Outcome = iota
	// OutcomeSuccess means the target explorer verified the contract
	OutcomeSuccess
	// OutcomeAlreadyVerified means the contract was verified on the target
	// explorer before this migration ran
	OutcomeAlreadyVerified
	// OutcomeFailed means the target explorer reported a verification failure
	OutcomeFailed
	// OutcomeTimedOut means the poll budget ran out while the verification
	// was still pending
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyVerified:
		return "already-verified"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// ParseOutcome maps an outcome's string form back to its Outcome value.
// Unrecognized strings map to OutcomeUnknown.
func ParseOutcome(s string) Outcome {
	switch s {
	case "success":
		return OutcomeSuccess
	case "already-verified":
		return OutcomeAlreadyVerified
	case "failed":
		return OutcomeFailed
	case "timed-out":
		return OutcomeTimedOut
	default:
		return OutcomeUnknown
	}
}

// Stage identifies which pipeline stage produced an error
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageConvert Stage = "convert"
	StageSubmit  Stage = "submit"
	StagePoll    Stage = "poll"
)

// Error is a pipeline error tagged with the stage that produced it, so
// callers can tell transient network issues from permanent format issues.
type Error struct {
	Stage   Stage
	Address string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Address, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, address string, err error) *Error {
	return &Error{Stage: stage, Address: address, Err: err}
}

// AddressResult is one entry of a batch result: the terminal outcome (or
// error) for a single input address
type AddressResult struct {
	Address string
	Outcome Outcome
	Err     error
}

// Reporter receives per-address progress notifications. Implementations
// must not influence migration results or their ordering.
type Reporter interface {
	Started(address string)
	Finished(address string, outcome Outcome, err error)
}

// NopReporter discards all notifications
type NopReporter struct{}

func (NopReporter) Started(string)                  {}
func (NopReporter) Finished(string, Outcome, error) {}
