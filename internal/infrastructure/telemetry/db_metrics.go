package telemetry

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/metric"
)

// PoolStatsFunc reads connection pool statistics, usually (*sql.DB).Stats
// behind a lookup of the gorm connection.
type PoolStatsFunc func() (sql.DBStats, error)

// RegisterDBPoolMetrics registers observable instruments that report the
// connection pool state on every collection. Unregister the returned
// registration before closing the pool.
func RegisterDBPoolMetrics(meter metric.Meter, stats PoolStatsFunc) (metric.Registration, error) {
	if meter == nil {
		return nil, &MetricsError{Op: "RegisterDBPoolMetrics", Err: "meter cannot be nil"}
	}

	maxOpen, err := meter.Int64ObservableGauge("db_pool_max_open_connections",
		metric.WithDescription("Maximum number of open connections to the database"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return nil, err
	}
	open, err := meter.Int64ObservableGauge("db_pool_open_connections",
		metric.WithDescription("Number of established connections, in use and idle"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return nil, err
	}
	inUse, err := meter.Int64ObservableGauge("db_pool_in_use_connections",
		metric.WithDescription("Number of connections currently in use"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return nil, err
	}
	idle, err := meter.Int64ObservableGauge("db_pool_idle_connections",
		metric.WithDescription("Number of idle connections"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return nil, err
	}
	waitCount, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{waits}"))
	if err != nil {
		return nil, err
	}
	waitDuration, err := meter.Float64ObservableCounter("db_pool_wait_duration_seconds",
		metric.WithDescription("Total time blocked waiting for a new connection"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s, err := stats()
		if err != nil {
			return err
		}
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(open, int64(s.OpenConnections))
		o.ObserveInt64(inUse, int64(s.InUse))
		o.ObserveInt64(idle, int64(s.Idle))
		o.ObserveInt64(waitCount, s.WaitCount)
		o.ObserveFloat64(waitDuration, s.WaitDuration.Seconds())
		return nil
	}, maxOpen, open, inUse, idle, waitCount, waitDuration)
}
