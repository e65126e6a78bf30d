package migration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/veriport/pkg/explorer"
)

// fakeSource implements SourceExplorer for testing
type fakeSource struct {
	metadata map[string]*explorer.SourceMetadata
	err      error
}

func (f *fakeSource) GetSourceCode(ctx context.Context, address string) (*explorer.SourceMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	if md, ok := f.metadata[address]; ok {
		return md, nil
	}
	return nil, errors.New("contract source code not verified")
}

// fakeTarget implements TargetExplorer for testing. Status responses are
// consumed in order; the last one repeats.
type fakeTarget struct {
	mu sync.Mutex

	submitResp *explorer.SubmitResponse
	submitErr  error
	submitted  []*explorer.VerifyRequest

	statusResponses []*explorer.VerifyStatus
	statusErr       error
	statusCalls     int
}

func (f *fakeTarget) VerifySourceCode(ctx context.Context, req *explorer.VerifyRequest) (*explorer.SubmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResp, nil
}

func (f *fakeTarget) CheckVerifyStatus(ctx context.Context, guid string) (*explorer.VerifyStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	idx := f.statusCalls - 1
	if idx >= len(f.statusResponses) {
		idx = len(f.statusResponses) - 1
	}
	return f.statusResponses[idx], nil
}

func (f *fakeTarget) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func okSubmit(guid string) *explorer.SubmitResponse {
	return &explorer.SubmitResponse{Status: "1", Message: "OK", Result: guid}
}

func status(code, result string) *explorer.VerifyStatus {
	return &explorer.VerifyStatus{Status: code, Result: result}
}

func fastPoll(attempts uint) PollPolicy {
	return PollPolicy{Attempts: attempts, Interval: 0}
}

func newTestPipeline(source *fakeSource, target *fakeTarget) *Pipeline {
	return &Pipeline{
		Source:  source,
		Target:  target,
		Convert: ConvertOptions{QualifyContractName: true},
		Poll:    fastPoll(10),
	}
}

// Scenario: single-file source with optimizer enabled is submitted and
// succeeds on the first poll.
func TestPipeline_SingleFileSuccess(t *testing.T) {
	source := &fakeSource{metadata: map[string]*explorer.SourceMetadata{
		testAddress: singleFileMetadata("contract Token {}"),
	}}
	target := &fakeTarget{
		submitResp:      okSubmit("guid-1"),
		statusResponses: []*explorer.VerifyStatus{status("1", "Pass - Verified")},
	}

	outcome, err := newTestPipeline(source, target).Migrate(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, 1, target.calls())

	require.Len(t, target.submitted, 1)
	req := target.submitted[0]
	assert.Equal(t, "Token.sol:Token", req.ContractName)
	assert.True(t, req.OptimizationUsed)
	assert.Equal(t, 200, req.Runs)
	assert.Equal(t, "v0.8.19+commit.7dd6d404", req.CompilerVersion)
}

// Scenario: target answers NOTOK with an already-verified reason; the
// pipeline returns without a single poll call.
func TestPipeline_AlreadyVerifiedAtSubmit(t *testing.T) {
	source := &fakeSource{metadata: map[string]*explorer.SourceMetadata{
		testAddress: singleFileMetadata("contract Token {}"),
	}}
	target := &fakeTarget{
		submitResp: &explorer.SubmitResponse{
			Status:  "0",
			Message: "NOTOK",
			Result:  "Contract source code already verified",
		},
	}

	outcome, err := newTestPipeline(source, target).Migrate(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVerified, outcome)
	assert.Equal(t, 0, target.calls(), "already-verified must short-circuit before polling")
}

// Scenario: first poll reports a compiler mismatch; no further polling.
func TestPipeline_UnableToVerify(t *testing.T) {
	source := &fakeSource{metadata: map[string]*explorer.SourceMetadata{
		testAddress: singleFileMetadata("contract Token {}"),
	}}
	target := &fakeTarget{
		submitResp:      okSubmit("guid-1"),
		statusResponses: []*explorer.VerifyStatus{status("0", "Unable to verify: compiler mismatch")},
	}

	outcome, err := newTestPipeline(source, target).Migrate(context.Background(), testAddress)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrUnableToVerify)
	assert.Equal(t, 1, target.calls())
}

func TestPipeline_StageTagging(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		source := &fakeSource{err: errors.New("connection refused")}
		_, err := newTestPipeline(source, &fakeTarget{}).Migrate(context.Background(), testAddress)
		var stageErr *Error
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageFetch, stageErr.Stage)
		assert.Equal(t, testAddress, stageErr.Address)
	})

	t.Run("convert", func(t *testing.T) {
		source := &fakeSource{metadata: map[string]*explorer.SourceMetadata{
			"bogus": singleFileMetadata("contract Token {}"),
		}}
		_, err := newTestPipeline(source, &fakeTarget{}).Migrate(context.Background(), "bogus")
		var stageErr *Error
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageConvert, stageErr.Stage)
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})

	t.Run("submit", func(t *testing.T) {
		source := &fakeSource{metadata: map[string]*explorer.SourceMetadata{
			testAddress: singleFileMetadata("contract Token {}"),
		}}
		target := &fakeTarget{submitResp: &explorer.SubmitResponse{
			Status: "0", Message: "NOTOK", Result: "Invalid API key",
		}}
		_, err := newTestPipeline(source, target).Migrate(context.Background(), testAddress)
		var stageErr *Error
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageSubmit, stageErr.Stage)
	})

	t.Run("poll", func(t *testing.T) {
		source := &fakeSource{metadata: map[string]*explorer.SourceMetadata{
			testAddress: singleFileMetadata("contract Token {}"),
		}}
		target := &fakeTarget{
			submitResp: okSubmit("guid-1"),
			statusErr:  errors.New("connection reset"),
		}
		_, err := newTestPipeline(source, target).Migrate(context.Background(), testAddress)
		var stageErr *Error
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StagePoll, stageErr.Stage)
	})
}
