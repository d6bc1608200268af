package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig is the column store connection.
type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Table    string `mapstructure:"table"`
}

const schema = `
	CREATE TABLE IF NOT EXISTS %s (
		timestamp DateTime64(3),
		device    LowCardinality(String),
		level     LowCardinality(String),
		signal    Int8,
		temp      Float64,
		humidity  Int32,
		condition LowCardinality(String),
		commands  String
	) ENGINE = MergeTree()
	ORDER BY (device, timestamp)
`

// ClickHouse writes events to a MergeTree table.
type ClickHouse struct {
	conn  driver.Conn
	table string
}

// OpenClickHouse connects, pings and creates the table if it is missing.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "panel_events"
	}
	if err := conn.Exec(ctx, fmt.Sprintf(schema, table)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return &ClickHouse{conn: conn, table: table}, nil
}

func (c *ClickHouse) Save(ctx context.Context, e Event) error {
	query := `INSERT INTO ` + c.table + ` (timestamp, device, level, signal, temp, humidity, condition, commands)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	err := c.conn.Exec(ctx, query,
		e.Time,
		e.Name,
		e.Level,
		e.Signal,
		e.Temp,
		int32(e.Humidity),
		e.Condition,
		strings.Join(e.Commands, ","),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
