package analytics

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// duplicateCompaniesQuery counts normalized company names that occur in more
// than one row. Rows found by the full-text matcher and rows loaded from the
// excluded source file are left out. The two LEFT JOINs only enrich the rows;
// countDistinct on the company id keeps them from inflating the count.
const duplicateCompaniesQuery = `
SELECT count() FROM (
    SELECT lowerUTF8(trimBoth(c.company_name)) AS normalized_name
    FROM companies AS c
    LEFT JOIN company_requisites AS r ON r.company_id = c.id
    LEFT JOIN company_activities AS a ON a.company_id = c.id
    WHERE c.fulltext_found = 0
      AND c.source_file != {excluded:String}
    GROUP BY normalized_name
    HAVING countDistinct(c.id) > 1
)`

type Config struct {
	Host               string
	Port               string
	Database           string
	User               string
	Password           string
	Timeout            time.Duration
	ExcludedSourceFile string
}

// Store runs aggregate queries against ClickHouse over its HTTP interface.
type Store struct {
	conn     driver.Conn
	excluded string
}

// Open prepares a connection. clickhouse-go dials lazily, so an unreachable
// server is only reported by the first query.
func Open(cfg Config) (*Store, error) {
	conn, err := clickhouse.Open(Options(cfg))
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	return &Store{conn: conn, excluded: cfg.ExcludedSourceFile}, nil
}

func Options(cfg Config) *clickhouse.Options {
	return &clickhouse.Options{
		Protocol: clickhouse.HTTP,
		Addr:     []string{net.JoinHostPort(cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: cfg.Timeout,
		ReadTimeout: cfg.Timeout,
	}
}

func (s *Store) CountDuplicateCompanies(ctx context.Context) (uint64, error) {
	var n uint64
	ctx = clickhouse.Context(ctx, clickhouse.WithParameters(clickhouse.Parameters{
		"excluded": s.excluded,
	}))
	if err := s.conn.QueryRow(ctx, duplicateCompaniesQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count duplicate companies: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}
