// Package ledger records an observational history of every granule the
// collector emits and every HDF5 file the writer produces, into an
// embedded-migration SQLite database. This is a supplement to spec.md
// (see SPEC_FULL.md §6.2): it does not compute missing-packet percentages
// or orbit numbers (both explicit non-goals), only counts and timings the
// collector and writer already have in hand.
package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jpss-rdr/rdrgen/internal/rdr/collector"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger wraps a SQLite database recording ingest runs and emitted granules.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies any pending migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &rdrerr.IoError{Op: "open ledger db", Err: err}
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger migrations source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("ledger migrate up: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun records the beginning of an ingest run and returns its ID.
func (l *Ledger) StartRun(startedAtUTCUs int64, configSummary string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(
		`INSERT INTO ingest_runs (id, started_at_utc_us, config_summary) VALUES (?, ?, ?)`,
		id, startedAtUTCUs, configSummary,
	)
	if err != nil {
		return "", &rdrerr.IoError{Op: "record ingest run", Err: err}
	}
	return id, nil
}

// RecordGranule records one emitted granule (primary or packed). Ledger
// writes are best-effort: callers should log and continue on error rather
// than abort the pipeline, matching spec §7's policy for HDF5 write
// failures extended to this observational side channel.
func (l *Ledger) RecordGranule(runID string, rdr granuleRecord) error {
	_, err := l.db.Exec(
		`INSERT INTO granules (run_id, product_id, granule_start_iet, granule_end_iet, packed, output_file, packet_count, emitted_at_wall_us, latency_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rdr.ProductID, rdr.GranStart, rdr.GranEnd, rdr.Packed, rdr.OutputFile, rdr.PacketCount, rdr.EmittedAtWallUs, rdr.LatencyNs,
	)
	if err != nil {
		return &rdrerr.IoError{Op: "record granule", Err: err}
	}
	return nil
}

// granuleRecord is the ledger row shape for one emitted granule.
type granuleRecord struct {
	ProductID       string
	GranStart       uint64
	GranEnd         uint64
	Packed          bool
	OutputFile      string
	PacketCount     int
	EmittedAtWallUs int64
	LatencyNs       int64
}

// RecordGroup records every RDR in a completed collector.Group (primary
// plus packed) against the given output file path.
func (l *Ledger) RecordGroup(runID string, group *collector.Group, outputFile string, emittedAtWallUs, latencyNs int64) {
	rec := granuleRecord{
		ProductID:       group.Primary.Product.ProductID,
		GranStart:       group.Primary.GranStart,
		GranEnd:         group.Primary.GranEnd,
		Packed:          false,
		OutputFile:      outputFile,
		PacketCount:     group.Primary.PacketCount,
		EmittedAtWallUs: emittedAtWallUs,
		LatencyNs:       latencyNs,
	}
	if err := l.RecordGranule(runID, rec); err != nil {
		opsf("failed to record primary granule: %v", err)
	}
	for _, p := range group.Packed {
		rec := granuleRecord{
			ProductID:       p.Product.ProductID,
			GranStart:       p.GranStart,
			GranEnd:         p.GranEnd,
			Packed:          true,
			OutputFile:      outputFile,
			PacketCount:     p.PacketCount,
			EmittedAtWallUs: emittedAtWallUs,
			LatencyNs:       latencyNs,
		}
		if err := l.RecordGranule(runID, rec); err != nil {
			opsf("failed to record packed granule: %v", err)
		}
	}
}

// Summary is the aggregate ledger statistics for one run.
type Summary struct {
	GranuleCount      int
	PacketCountByApid map[string]int
	MeanLatencyNs     float64
	StddevLatencyNs   float64
}

// Latencies returns every recorded latency_ns value for a run, used by the
// report package's jitter/skew statistics.
func (l *Ledger) Latencies(runID string) ([]float64, error) {
	rows, err := l.db.Query(`SELECT latency_ns FROM granules WHERE run_id = ?`, runID)
	if err != nil {
		return nil, &rdrerr.IoError{Op: "query latencies", Err: err}
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, &rdrerr.IoError{Op: "scan latency", Err: err}
		}
		out = append(out, float64(v))
	}
	return out, rows.Err()
}

// PacketCountsByProduct returns the total packet count per product_id for
// a run, used by the report package's per-product chart.
func (l *Ledger) PacketCountsByProduct(runID string) (map[string]int, error) {
	rows, err := l.db.Query(
		`SELECT product_id, SUM(packet_count) FROM granules WHERE run_id = ? GROUP BY product_id`,
		runID,
	)
	if err != nil {
		return nil, &rdrerr.IoError{Op: "query packet counts", Err: err}
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var product string
		var count int
		if err := rows.Scan(&product, &count); err != nil {
			return nil, &rdrerr.IoError{Op: "scan packet count", Err: err}
		}
		out[product] = count
	}
	return out, rows.Err()
}
