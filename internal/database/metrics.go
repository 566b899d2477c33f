package database

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Metric is one persisted counter sample. Labels is the encoded label set,
// empty for unlabeled counters.
type Metric struct {
	Name   string
	Labels string
	Value  float64
}

// SaveMetrics replaces the stored values of every given metric in one transaction.
func (db *DB) SaveMetrics(metrics []Metric) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin metrics transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT OR REPLACE INTO metrics (metric_name, labels, metric_value, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP);`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare metric insert")
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.Exec(m.Name, m.Labels, m.Value); err != nil {
			return errors.Wrapf(err, "failed to save metric %s[%s]", m.Name, m.Labels)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit metrics")
	}
	log.Debugf("Saved %d metrics", len(metrics))
	return nil
}

// LoadMetrics returns every stored sample ordered by name and labels.
func (db *DB) LoadMetrics() ([]Metric, error) {
	rows, err := db.conn.Query(`
	SELECT metric_name, labels, metric_value
	FROM metrics
	ORDER BY metric_name, labels;`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query metrics")
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.Name, &m.Labels, &m.Value); err != nil {
			return nil, errors.Wrap(err, "failed to scan metric row")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate metric rows")
	}
	return out, nil
}
