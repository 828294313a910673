package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DB 쿼리 실행 시간
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "address_finder_db_query_duration_seconds",
			Help:    "Database query execution time in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "table", "status"},
	)

	// DB 쿼리 실행 횟수
	dbQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	dbErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// 느린 쿼리 횟수 (>1초)
	dbSlowQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_db_slow_queries_total",
			Help: "Total number of slow queries (>1 second)",
		},
		[]string{"operation", "table"},
	)

	dbConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "address_finder_db_connection_pool_size",
			Help: "Maximum number of database connections in the pool",
		},
	)

	dbConnectionPoolIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "address_finder_db_connection_pool_idle",
			Help: "Number of idle database connections in the pool",
		},
	)

	dbConnectionPoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "address_finder_db_connection_pool_in_use",
			Help: "Number of database connections currently in use",
		},
	)
)

// MetricsPlugin GORM metrics plugin
type MetricsPlugin struct{}

func (p *MetricsPlugin) Name() string {
	return "metricsPlugin"
}

// Initialize registers before/after callbacks for every operation.
func (p *MetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	_ = cb.Create().Before("gorm:create").Register("metrics:before_create", beforeCallback)
	_ = cb.Create().After("gorm:create").Register("metrics:after_create", afterCallback("INSERT"))

	_ = cb.Query().Before("gorm:query").Register("metrics:before_query", beforeCallback)
	_ = cb.Query().After("gorm:query").Register("metrics:after_query", afterCallback("SELECT"))

	_ = cb.Update().Before("gorm:update").Register("metrics:before_update", beforeCallback)
	_ = cb.Update().After("gorm:update").Register("metrics:after_update", afterCallback("UPDATE"))

	_ = cb.Delete().Before("gorm:delete").Register("metrics:before_delete", beforeCallback)
	_ = cb.Delete().After("gorm:delete").Register("metrics:after_delete", afterCallback("DELETE"))

	_ = cb.Row().Before("gorm:row").Register("metrics:before_row", beforeCallback)
	_ = cb.Row().After("gorm:row").Register("metrics:after_row", afterCallback(""))

	_ = cb.Raw().Before("gorm:raw").Register("metrics:before_raw", beforeCallback)
	_ = cb.Raw().After("gorm:raw").Register("metrics:after_raw", afterCallback(""))

	return nil
}

func beforeCallback(db *gorm.DB) {
	db.InstanceSet("metrics:start_time", time.Now())
}

// afterCallback records duration and outcome. operation is empty for
// row/raw callbacks, where it is read from the SQL text.
func afterCallback(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		startTime, ok := db.InstanceGet("metrics:start_time")
		if !ok {
			return
		}

		duration := time.Since(startTime.(time.Time)).Seconds()
		op := operation
		if op == "" {
			op = sqlOperation(db.Statement.SQL.String())
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		status := "success"
		failed := db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound)
		if failed {
			status = "error"
			dbErrorsTotal.WithLabelValues(op, table, fmt.Sprintf("%T", db.Error)).Inc()
		}

		dbQueryDuration.WithLabelValues(op, table, status).Observe(duration)
		dbQueryTotal.WithLabelValues(op, table, status).Inc()

		if duration > 1.0 {
			dbSlowQueriesTotal.WithLabelValues(op, table).Inc()
		}
	}
}

// sqlOperation 쿼리 operation 타입 추출
func sqlOperation(sql string) string {
	sql = strings.TrimSpace(sql)
	if len(sql) < 6 {
		return "RAW"
	}
	switch op := strings.ToUpper(sql[:6]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	}
	return "RAW"
}

// UpdateConnectionPoolMetrics connection pool 메트릭 업데이트 (주기적 호출)
func UpdateConnectionPoolMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	stats := sqlDB.Stats()
	dbConnectionPoolSize.Set(float64(stats.MaxOpenConnections))
	dbConnectionPoolIdle.Set(float64(stats.Idle))
	dbConnectionPoolInUse.Set(float64(stats.InUse))
}

// StartConnectionPoolMetricsCollector connection pool 메트릭 수집 시작 (백그라운드)
func StartConnectionPoolMetricsCollector(ctx context.Context, db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateConnectionPoolMetrics(db)
		}
	}
}
