package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultElectionKey   = "maintenance:leader:daily-tick"
	defaultLeaseDuration = 15 * time.Second
	defaultRenewInterval = 5 * time.Second
)

// Lease is the shared lock backing an election.
type Lease interface {
	// Acquire takes the lease for holder or extends it when holder already owns it.
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	// Release drops the lease only when holder still owns it.
	Release(ctx context.Context, key, holder string) error
}

// RedisLease keeps the lease as a single expiring key.
type RedisLease struct {
	client *redis.Client
}

// NewRedisLease wraps an existing client; the caller owns its lifecycle.
func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Acquire implements Lease.
func (l *RedisLease) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set lease: %w", err)
	}
	if ok {
		return true, nil
	}
	renewed, err := renewScript.Run(ctx, l.client, []string{key}, holder, ttl.Milliseconds()).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return renewed == 1, nil
}

// Release implements Lease.
func (l *RedisLease) Release(ctx context.Context, key, holder string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, holder).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Config tunes an Election.
type Config struct {
	Key           string
	InstanceID    string
	LeaseDuration time.Duration
	RenewInterval time.Duration
	// OnChange is invoked after every leadership flip.
	OnChange func(isLeader bool)
}

// Election campaigns for a lease and tracks whether this replica currently holds it.
type Election struct {
	lease  Lease
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	isLeader bool
	leaderCh chan bool
}

// NewElection builds an election over the given lease.
func NewElection(lease Lease, cfg Config, logger *zap.Logger) *Election {
	if cfg.Key == "" {
		cfg.Key = defaultElectionKey
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLeaseDuration
	}
	if cfg.RenewInterval <= 0 || cfg.RenewInterval >= cfg.LeaseDuration {
		cfg.RenewInterval = cfg.LeaseDuration / 3
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Election{
		lease:    lease,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "leader_election"), zap.String("instance_id", cfg.InstanceID)),
		leaderCh: make(chan bool, 1),
	}
}

// InstanceID identifies this replica in the lease.
func (e *Election) InstanceID() string { return e.cfg.InstanceID }

// IsLeader reports whether the last campaign round held the lease.
func (e *Election) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// LeaderCh receives leadership changes. Sends never block; a slow reader only sees the latest flips.
func (e *Election) LeaderCh() <-chan bool { return e.leaderCh }

// Run campaigns until ctx is done, then releases the lease if held.
func (e *Election) Run(ctx context.Context) {
	e.logger.Info("starting leader election", zap.Duration("lease", e.cfg.LeaseDuration))
	ticker := time.NewTicker(e.cfg.RenewInterval)
	defer ticker.Stop()

	e.campaign(ctx)
	for {
		select {
		case <-ctx.Done():
			e.resign()
			return
		case <-ticker.C:
			e.campaign(ctx)
		}
	}
}

func (e *Election) campaign(ctx context.Context) {
	acquired, err := e.lease.Acquire(ctx, e.cfg.Key, e.cfg.InstanceID, e.cfg.LeaseDuration)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Error("leader lease round failed", zap.Error(err))
		e.setLeader(false)
		return
	}
	e.setLeader(acquired)
}

func (e *Election) resign() {
	if !e.IsLeader() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.lease.Release(ctx, e.cfg.Key, e.cfg.InstanceID); err != nil {
		e.logger.Error("failed to release leader lease", zap.Error(err))
	} else {
		e.logger.Info("released leader lease")
	}
	e.setLeader(false)
}

func (e *Election) setLeader(isLeader bool) {
	e.mu.Lock()
	if e.isLeader == isLeader {
		e.mu.Unlock()
		return
	}
	e.isLeader = isLeader
	e.mu.Unlock()

	if isLeader {
		e.logger.Info("acquired leadership")
	} else {
		e.logger.Warn("lost leadership")
	}
	if e.cfg.OnChange != nil {
		e.cfg.OnChange(isLeader)
	}
	select {
	case e.leaderCh <- isLeader:
	default:
	}
}

// Always is a gate for single-replica deployments where election is disabled.
type Always struct{}

// IsLeader always reports true.
func (Always) IsLeader() bool { return true }
