package db

import (
	"fmt"
	"strings"

	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
)

// Options configures the badger database
type Options struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// Open opens a badger database, routing badger's own logging through log
func Open(opts Options, log logger.Logger) (*badger.DB, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("badger path is required when not running in memory")
		}
		badgerOpts = badger.DefaultOptions(opts.Path).WithSyncWrites(opts.SyncWrites)
	}
	badgerOpts = badgerOpts.WithLogger(&badgerLogger{log: log.WithField("component", "badger")})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return db, nil
}

// badgerLogger adapts logger.Logger to badger.Logger. Badger's info chatter is demoted to debug.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(trim(format, args...), nil)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(trim(format, args...), nil)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(trim(format, args...), nil)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(trim(format, args...), nil)
}

func trim(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
