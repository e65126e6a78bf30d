package migration

import (
	"context"

	"go.uber.org/zap"

	"github.com/pendergraft/veriport/internal/validation"
)

// Pipeline migrates the verification of a single contract: fetch metadata
// from the source explorer, convert it, submit it to the target explorer,
// and poll until a terminal outcome. Pipelines hold no per-contract state
// and are safe to share across concurrent migrations.
type Pipeline struct {
	Source  SourceExplorer
	Target  TargetExplorer
	Convert ConvertOptions
	Poll    PollPolicy
	Logger  *zap.Logger
}

// Migrate runs the full pipeline for one address, short-circuiting on the
// first error. Every error is tagged with the stage that produced it.
func (p *Pipeline) Migrate(ctx context.Context, address string) (Outcome, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("address", address))

	md, err := p.Source.GetSourceCode(ctx, address)
	if err != nil {
		return OutcomeUnknown, stageErr(StageFetch, address, err)
	}
	logger.Debug("fetched source metadata",
		zap.String("contract", md.ContractName),
		zap.String("compiler", md.CompilerVersion),
	)

	if err := validation.ValidateCompilerVersion(md.CompilerVersion); err != nil {
		// Explorers occasionally return malformed version strings; the
		// target may still accept them, so this is not fatal.
		logger.Warn("suspicious compiler version", zap.Error(err))
	}

	req, err := Convert(address, md, p.Convert)
	if err != nil {
		return OutcomeUnknown, stageErr(StageConvert, address, err)
	}

	sub, err := Submit(ctx, p.Target, req)
	if err != nil {
		return OutcomeUnknown, stageErr(StageSubmit, address, err)
	}
	if sub.AlreadyVerified {
		logger.Info("contract already verified on target")
		return OutcomeAlreadyVerified, nil
	}
	logger.Debug("verification submitted", zap.String("guid", sub.GUID))

	outcome, err := Poll(ctx, p.Target, sub.GUID, p.Poll, logger)
	if err != nil {
		return outcome, stageErr(StagePoll, address, err)
	}
	logger.Info("verification finished", zap.String("outcome", outcome.String()))
	return outcome, nil
}
