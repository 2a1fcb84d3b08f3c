// Package history stores every benchmark round and its samples in sqlite so
// runs can be compared across days.
package history

import (
	"context"

	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/logger"
)

type service struct {
	repo   Repository
	logger logger.Logger
}

// No-op implementation
type noopRecorder struct{}

func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Round history disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Msg("History service initialized")

	return &service{
		repo:   repo,
		logger: log,
	}, nil
}

func (s *service) Record(ctx context.Context, round *Round) error {
	errFactory := errors.New()

	if round == nil || round.Outcome == nil {
		return errFactory.New(ErrInvalidRound)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if _, err := s.repo.Store(ctx, round); err != nil {
			return err
		}
	}

	return nil
}

func (s *service) BestStable(ctx context.Context, address string) (*Summary, error) {
	return s.repo.BestStable(ctx, address)
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*noopRecorder) Record(_ context.Context, _ *Round) error {
	return nil
}

func (*noopRecorder) BestStable(_ context.Context, _ string) (*Summary, error) {
	return nil, nil
}

func (*noopRecorder) Close() error {
	return nil
}
