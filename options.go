package fundvault

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vaultsandbox/fundvault/internal/retry"
)

// ProgramName is the default name the manager registers with the runtime.
// Vault addresses depend on it.
const ProgramName = "fundvault"

const (
	defaultCommitBaseDelay = time.Millisecond
	defaultCommitMaxDelay  = 50 * time.Millisecond
)

// managerConfig holds configuration for the manager.
type managerConfig struct {
	logger      *zap.Logger
	registerer  prometheus.Registerer
	now         func() time.Time
	programName string

	commitBaseDelay   time.Duration
	commitMaxDelay    time.Duration
	maxCommitAttempts int
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		logger:          zap.NewNop(),
		now:             time.Now,
		programName:     ProgramName,
		commitBaseDelay: defaultCommitBaseDelay,
		commitMaxDelay:  defaultCommitMaxDelay,
	}
}

func (c *managerConfig) retryConfig() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.BaseDelay = c.commitBaseDelay
	cfg.MaxDelay = c.commitMaxDelay
	cfg.MaxAttempts = c.maxCommitAttempts
	return cfg
}

// initConfig holds configuration for vault initialization.
type initConfig struct {
	salt []byte
}

// opConfig holds configuration for deposits and withdrawals.
type opConfig struct {
	grants []GrantRequest
}

// Option configures the manager.
type Option func(*managerConfig)

// InitOption configures vault initialization.
type InitOption func(*initConfig)

// OpOption configures a deposit or withdrawal.
type OpOption func(*opConfig)

// WithLogger sets the logger. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers the manager's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *managerConfig) {
		c.registerer = reg
	}
}

// WithClock sets the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *managerConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithProgramName sets the program name vault addresses are derived under.
// Default: ProgramName
func WithProgramName(name string) Option {
	return func(c *managerConfig) {
		c.programName = name
	}
}

// WithCommitBackoff sets the delay bounds between compare-and-commit
// retries. Default: 1ms growing to 50ms
func WithCommitBackoff(base, max time.Duration) Option {
	return func(c *managerConfig) {
		c.commitBaseDelay = base
		c.commitMaxDelay = max
	}
}

// WithMaxCommitAttempts bounds compare-and-commit attempts. Zero, the
// default, retries until the commit lands; a deposit whose transfer has
// been confirmed is then always accounted.
func WithMaxCommitAttempts(n int) Option {
	return func(c *managerConfig) {
		c.maxCommitAttempts = n
	}
}

// WithSalt adds an extra seed to the vault address so one creator can own
// several vaults. At most 32 bytes.
func WithSalt(salt []byte) InitOption {
	return func(c *initConfig) {
		c.salt = append([]byte(nil), salt...)
	}
}

// WithGrants requests capability grants after the accounting update commits.
func WithGrants(requests ...GrantRequest) OpOption {
	return func(c *opConfig) {
		c.grants = append(c.grants, requests...)
	}
}
