package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/pendergraft/veriport/pkg/explorer"
)

// Submission is the classified result of a verification submission
type Submission struct {
	// GUID identifies the pending verification request on the target
	// explorer; empty when AlreadyVerified is set
	GUID string
	// AlreadyVerified means the target explorer reported the contract as
	// verified before this submission. A legitimate terminal state, not a
	// failure.
	AlreadyVerified bool
}

// Submit sends one verification request to the target explorer and
// classifies its response. There is no retry at this layer; transport
// failures bubble up uninterpreted.
func Submit(ctx context.Context, target TargetExplorer, req *explorer.VerifyRequest) (*Submission, error) {
	resp, err := target.VerifySourceCode(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Message != "OK" {
		if containsAlreadyVerified(resp.Result) || containsAlreadyVerified(resp.Message) {
			return &Submission{AlreadyVerified: true}, nil
		}
		return nil, fmt.Errorf("verification returned non-ok response: %s", resp.Result)
	}

	if resp.Result == "" {
		return nil, fmt.Errorf("verification accepted but no request id returned")
	}
	return &Submission{GUID: resp.Result}, nil
}

func containsAlreadyVerified(s string) bool {
	return strings.Contains(strings.ToLower(s), "already verified")
}
