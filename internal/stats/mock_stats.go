package stats

import "github.com/stretchr/testify/mock"

// MockStatsUpdater is a testify double for StatsProvider; tests assert
// which gauges a code path touched without a running updater.
type MockStatsUpdater struct {
	mock.Mock
}

func (m *MockStatsUpdater) Incr(metric Metric) {
	m.Called(metric)
}

func (m *MockStatsUpdater) Decr(metric Metric) {
	m.Called(metric)
}

func (m *MockStatsUpdater) RegisterMetric(metric Metric) {
	m.Called(metric)
}

func (m *MockStatsUpdater) Run() {
	m.Called()
}
