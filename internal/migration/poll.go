package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/pendergraft/veriport/pkg/explorer"
)

// PollPolicy bounds the verification status poll loop
type PollPolicy struct {
	// Attempts is the total number of status queries, including the first
	Attempts uint
	// Interval is the fixed wait between queries
	Interval time.Duration
}

// DefaultPollPolicy returns the reference poll bounds: 10 attempts, 10
// seconds apart, a fixed worst-case wall-clock bound per contract.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Attempts: 10, Interval: 10 * time.Second}
}

// errPending marks a poll response that is neither a pass nor a failure;
// it is the only error the poll loop retries on.
var errPending = errors.New("verification pending")

type verdict int

const (
	verdictPending verdict = iota
	verdictPass
	verdictAlreadyVerified
	verdictUnableToVerify
	verdictFailed
)

// Poll drives a submission GUID to a terminal outcome. The loop never runs
// unbounded: it stops on a terminal signal, on a transport error, or when
// the attempt budget is exhausted (OutcomeTimedOut). Transport errors are
// fatal immediately; they are not treated as still-pending.
func Poll(ctx context.Context, target TargetExplorer, guid string, policy PollPolicy, logger *zap.Logger) (Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var outcome Outcome
	err := retry.Do(
		func() error {
			status, err := target.CheckVerifyStatus(ctx, guid)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("checking verification status: %w", err))
			}

			switch classifyStatus(status) {
			case verdictUnableToVerify:
				outcome = OutcomeFailed
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrUnableToVerify, status.Result))
			case verdictAlreadyVerified:
				outcome = OutcomeAlreadyVerified
				return nil
			case verdictFailed:
				outcome = OutcomeFailed
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrVerificationFailed, status.Result))
			case verdictPass:
				outcome = OutcomeSuccess
				return nil
			default:
				return errPending
			}
		},
		retry.Context(ctx),
		retry.Attempts(policy.Attempts),
		retry.Delay(policy.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errPending)
		}),
		retry.OnRetry(func(attempt uint, _ error) {
			logger.Debug("verification still pending",
				zap.String("guid", guid),
				zap.Uint("attempt", attempt+1),
				zap.Uint("max_attempts", policy.Attempts),
			)
		}),
	)

	if err == nil {
		return outcome, nil
	}
	if errors.Is(err, errPending) {
		return OutcomeTimedOut, ErrTimedOut
	}
	return outcome, err
}

// classifyStatus maps one checkverifystatus response onto a state
// transition. The pending check runs before the status-flag check because
// explorers report "Pending in queue" with the failure status code.
func classifyStatus(status *explorer.VerifyStatus) verdict {
	lower := strings.ToLower(status.Result)
	switch {
	case strings.Contains(lower, "unable to verify"):
		return verdictUnableToVerify
	case strings.EqualFold(status.Result, "Already Verified"):
		return verdictAlreadyVerified
	case strings.EqualFold(status.Result, "Pass - Verified"):
		return verdictPass
	case strings.Contains(lower, "pending"):
		return verdictPending
	case status.Status == "0":
		return verdictFailed
	default:
		return verdictPending
	}
}
