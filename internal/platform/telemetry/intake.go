package telemetry

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

// IntakeMetrics exports intake outcomes to Prometheus.
type IntakeMetrics struct {
	submissions *prometheus.CounterVec
	balance     prometheus.Gauge
}

// NewIntakeMetrics registers the intake collectors with reg. Collectors
// already registered by an earlier call are reused.
func NewIntakeMetrics(reg prometheus.Registerer) (*IntakeMetrics, error) {
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_submissions_total",
		Help: "Intake attempts by outcome.",
	}, []string{"outcome"})

	balance := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "intake_quota_balance",
		Help: "Remaining submission slots reported by the last accepted submission.",
	})

	var err error

	if submissions, err = register(reg, submissions); err != nil {
		return nil, err
	}

	if balance, err = register(reg, balance); err != nil {
		return nil, err
	}

	return &IntakeMetrics{submissions: submissions, balance: balance}, nil
}

// RecordOutcome counts one intake attempt.
func (m *IntakeMetrics) RecordOutcome(_ context.Context, kind domain.ResultKind) {
	m.submissions.WithLabelValues(string(kind)).Inc()
}

// RecordBalance publishes the balance returned to the last accepted applicant.
func (m *IntakeMetrics) RecordBalance(_ context.Context, balance int) {
	m.balance.Set(float64(balance))
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}

		return c, err
	}

	return c, nil
}
