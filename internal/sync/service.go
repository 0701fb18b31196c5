package sync

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("sync: database handle is required")

	// ErrFutureMutation indicates a client submitted a mutation ID beyond the
	// next expected one: a protocol violation, not a business failure.
	ErrFutureMutation = errors.New("sync: mutation is from the future")
	// ErrInvalidArgs indicates a mutation's arguments did not match the shape
	// its name requires.
	ErrInvalidArgs = errors.New("sync: invalid mutation arguments")
)

const defaultCVRCacheCapacity = 1000

// Notifier receives fire-and-forget change notifications for a channel.
type Notifier interface {
	Publish(channel string)
}

// ServiceConfig describes the dependencies of the sync engine.
type ServiceConfig struct {
	Database         *gorm.DB
	Notifier         Notifier
	CVRCacheCapacity int
	Logger           *zap.Logger
}

// Service implements the pull and push halves of the synchronization
// protocol on top of the versioned store.
type Service struct {
	db       *gorm.DB
	notifier Notifier
	cache    *cvrCache
	logger   *zap.Logger
}

// NewService constructs the sync engine. Notifier may be nil, in which case
// pokes are dropped.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}

	capacity := cfg.CVRCacheCapacity
	if capacity <= 0 {
		capacity = defaultCVRCacheCapacity
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		db:       cfg.Database,
		notifier: cfg.Notifier,
		cache:    newCVRCache(capacity),
		logger:   logger,
	}, nil
}
