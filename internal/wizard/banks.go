package wizard

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sr-wizard/internal/domain"
	"sr-wizard/internal/gateway"
)

// BankLoader loads the bank directory once. Concurrent callers share a
// single fetch; a failed or empty fetch yields the static fallback table.
type BankLoader struct {
	gw    gateway.Gateway
	log   *zap.Logger
	group singleflight.Group

	mu  sync.Mutex
	dir *domain.BankDirectory
}

func NewBankLoader(gw gateway.Gateway, log *zap.Logger) *BankLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &BankLoader{gw: gw, log: log.Named("banks")}
}

func (l *BankLoader) cached() *domain.BankDirectory {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dir
}

func (l *BankLoader) Load(ctx context.Context) *domain.BankDirectory {
	if d := l.cached(); d != nil {
		return d
	}
	v, _, _ := l.group.Do("banks", func() (any, error) {
		if d := l.cached(); d != nil {
			return d, nil
		}
		banks, err := l.gw.BankList(ctx)
		if err != nil {
			l.log.Warn("bank list unavailable, using fallback", zap.Error(err))
			dir := domain.FallbackBankDirectory()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return dir, nil
			}
			l.store(dir)
			return dir, nil
		}
		dir := domain.NewBankDirectory(banks, domain.BankSourceRemote)
		if dir.Len() == 0 {
			l.log.Info("bank list empty, using fallback")
			dir = domain.FallbackBankDirectory()
		}
		l.store(dir)
		return dir, nil
	})
	return v.(*domain.BankDirectory)
}

func (l *BankLoader) store(d *domain.BankDirectory) {
	l.mu.Lock()
	l.dir = d
	l.mu.Unlock()
}
