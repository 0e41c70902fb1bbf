package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

type backend interface {
	Close() error
	Ping(context.Context) error
}

// backendSelector remembers the factory that worked last time to skip
// probing the others.
type backendSelector[F any, B backend] struct {
	locker         sync.Mutex
	lastSuccessful F
	hasSuccessful  bool
	newBackend     func(F) (B, error)
}

func (s *backendSelector[F, B]) last() (F, bool) {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.lastSuccessful, s.hasSuccessful
}

func (s *backendSelector[F, B]) try(ctx context.Context, factory F) (B, error) {
	var zero B
	b, err := s.newBackend(factory)
	logger.Debugf(ctx, "initializing a backend using %T: %v", factory, err)
	if err != nil {
		return zero, fmt.Errorf("unable to initialize using %T: %w", factory, err)
	}
	err = b.Ping(ctx)
	logger.Debugf(ctx, "pinging %T: %v", b, err)
	if err != nil {
		_ = b.Close()
		return zero, fmt.Errorf("unable to ping %T: %w", b, err)
	}
	return b, nil
}

// Select returns the first backend that could be initialized and pinged.
// If none, all the failures are returned.
func (s *backendSelector[F, B]) Select(
	ctx context.Context,
	factories []F,
) (B, error) {
	if factory, ok := s.last(); ok {
		if b, err := s.try(ctx, factory); err == nil {
			return b, nil
		}
	}

	var mErr *multierror.Error
	for _, factory := range factories {
		b, err := s.try(ctx, factory)
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		s.locker.Lock()
		s.lastSuccessful, s.hasSuccessful = factory, true
		s.locker.Unlock()
		return b, nil
	}

	var zero B
	if mErr == nil {
		return zero, fmt.Errorf("no backends are linked into the binary")
	}
	return zero, mErr
}
