package db

import (
	"errors"
	"fmt"
	"os"
	"time"

	"family-tree-go/internal/config"
	"family-tree-go/pkg/logger"
	"github.com/dgraph-io/badger/v4"
)

// Badger wraps the embedded store used when profiles live on the local
// device instead of postgres.
type Badger struct {
	*badger.DB
	log    logger.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewBadger(cfg config.BadgerConfig, log logger.Logger) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: log.With("component", "badger")})

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	log.Info("db: badger opened", "path", cfg.Path, "in_memory", cfg.InMemory)

	b := &Badger{DB: bdb, log: log}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		b.stopCh = make(chan struct{})
		b.doneCh = make(chan struct{})
		go b.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return b, nil
}

func (b *Badger) Close() error {
	if b.stopCh != nil {
		close(b.stopCh)
		<-b.doneCh
	}
	return b.DB.Close()
}

func (b *Badger) runGC(interval time.Duration, ratio float64) {
	defer close(b.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			err := b.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.log.Warn("db: badger value log gc failed", "err", err)
			}
		}
	}
}

type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
