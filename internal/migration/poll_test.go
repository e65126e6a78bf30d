package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/veriport/pkg/explorer"
)

func TestPoll_Success(t *testing.T) {
	target := &fakeTarget{statusResponses: []*explorer.VerifyStatus{
		status("1", "Pass - Verified"),
	}}

	outcome, err := Poll(context.Background(), target, "guid", fastPoll(10), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, 1, target.calls())
}

func TestPoll_SuccessAfterPending(t *testing.T) {
	target := &fakeTarget{statusResponses: []*explorer.VerifyStatus{
		status("0", "Pending in queue"),
		status("0", "Pending in queue"),
		status("1", "Pass - Verified"),
	}}

	outcome, err := Poll(context.Background(), target, "guid", fastPoll(10), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, 3, target.calls())
}

func TestPoll_AlreadyVerified(t *testing.T) {
	target := &fakeTarget{statusResponses: []*explorer.VerifyStatus{
		status("0", "Already Verified"),
	}}

	outcome, err := Poll(context.Background(), target, "guid", fastPoll(10), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVerified, outcome)
}

func TestPoll_UnableToVerifyIsFatal(t *testing.T) {
	target := &fakeTarget{statusResponses: []*explorer.VerifyStatus{
		status("0", "Fail - Unable to verify"),
		status("1", "Pass - Verified"), // must never be reached
	}}

	outcome, err := Poll(context.Background(), target, "guid", fastPoll(10), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnableToVerify)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1, target.calls())
}

func TestPoll_FailureStatus(t *testing.T) {
	target := &fakeTarget{statusResponses: []*explorer.VerifyStatus{
		status("0", "Fail - error processing request"),
	}}

	outcome, err := Poll(context.Background(), target, "guid", fastPoll(10), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestPoll_TimesOutAfterBudget(t *testing.T) {
	target := &fakeTarget{statusResponses: []*explorer.VerifyStatus{
		status("0", "Pending in queue"),
	}}

	outcome, err := Poll(context.Background(), target, "guid", fastPoll(10), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, 10, target.calls(), "budget is 10 attempts including the first")
}

func TestPoll_TransportErrorIsFatal(t *testing.T) {
	transportErr := errors.New("connection reset by peer")
	target := &fakeTarget{statusErr: transportErr}

	outcome, err := Poll(context.Background(), target, "guid", fastPoll(10), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	assert.NotErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, OutcomeUnknown, outcome)
	assert.Equal(t, 1, target.calls(), "a transport error must not be treated as still pending")
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status *explorer.VerifyStatus
		want   verdict
	}{
		{"pass", status("1", "Pass - Verified"), verdictPass},
		{"already verified", status("0", "Already Verified"), verdictAlreadyVerified},
		{"unable to verify", status("0", "Fail - Unable to verify"), verdictUnableToVerify},
		{"unable to verify with reason", status("0", "Unable to verify: compiler mismatch"), verdictUnableToVerify},
		{"pending with failure status code", status("0", "Pending in queue"), verdictPending},
		{"failure", status("0", "Fail - error"), verdictFailed},
		{"unrecognized ok response", status("1", "In progress"), verdictPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.status))
		})
	}
}
