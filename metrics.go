package fundvault

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels.
const (
	opInitialize = "initialize"
	opDeposit    = "deposit"
	opWithdraw   = "withdraw"
	opFinalize   = "finalize"
)

type metrics struct {
	operations    *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	grantFailures *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fundvault",
			Name:      "operations_total",
			Help:      "Vault operations by operation and result.",
		}, []string{"op", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fundvault",
			Name:      "commit_conflicts_total",
			Help:      "Compare-and-commit attempts that lost to a concurrent writer.",
		}, []string{"op"}),
		grantFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fundvault",
			Name:      "grant_failures_total",
			Help:      "Capability grants that failed after a committed update.",
		}, []string{"scope"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.operations, err = register(reg, m.operations); err != nil {
		return nil, err
	}
	if m.conflicts, err = register(reg, m.conflicts); err != nil {
		return nil, err
	}
	if m.grantFailures, err = register(reg, m.grantFailures); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns the already registered collector when several managers
// share one registerer.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *metrics) observe(op string, err error) {
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *metrics) conflict(op string) {
	m.conflicts.WithLabelValues(op).Inc()
}

func (m *metrics) grantFailed(scope Scope) {
	m.grantFailures.WithLabelValues(scope.String()).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	labels := []struct {
		target error
		label  string
	}{
		{ErrGrantFailed, "grant_failed"},
		{ErrAlreadyInUse, "already_in_use"},
		{ErrOwnerMismatch, "owner_mismatch"},
		{ErrInvalidMint, "invalid_mint"},
		{ErrMintMismatch, "mint_mismatch"},
		{ErrUninitializedState, "uninitialized"},
		{ErrOverflow, "overflow"},
		{ErrInvalidState, "invalid_state"},
		{ErrInvalidDestination, "invalid_destination"},
		{ErrInvalidGrantRequest, "invalid_grant_request"},
		{ErrCollaborator, "collaborator"},
	}
	for _, l := range labels {
		if errors.Is(err, l.target) {
			return l.label
		}
	}
	return "error"
}
