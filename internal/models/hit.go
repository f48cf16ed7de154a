package models

import (
	"database/sql"
	"fmt"
	"time"
)

// SplitHit is one audited request to /split/{slug} that resolved to a
// redirect. Immutable except for the bot-flag backfill and bulk deletion by
// test slug (stats reset).
type SplitHit struct {
	ID         int64
	TS         time.Time
	TestSlug   string
	VariantID  int64
	ClientID   string
	IP         []byte
	UserAgent  string
	Referrer   string
	GeoCountry string
	GeoCity    string
	DeviceType string
	IsBot      bool
}

func BatchInsertSplitHits(db *sql.DB, hits []SplitHit) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO split_hits (ts, test_slug, variant_id, client_id, ip, ua, referrer, geo_country, geo_city, device_type, is_bot) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, h := range hits {
		_, err := stmt.Exec(
			h.TS, h.TestSlug, h.VariantID, h.ClientID, h.IP, h.UserAgent,
			h.Referrer, h.GeoCountry, h.GeoCity, h.DeviceType, boolToInt(h.IsBot),
		)
		if err != nil {
			return fmt.Errorf("insert split hit: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteSplitHits removes all hits for a test slug and returns the row count.
func DeleteSplitHits(db *sql.DB, testSlug string) (int64, error) {
	res, err := db.Exec(`DELETE FROM split_hits WHERE test_slug = ?`, testSlug)
	if err != nil {
		return 0, fmt.Errorf("delete split hits: %w", err)
	}
	return res.RowsAffected()
}

// SelectUnflaggedHits returns hit rows whose bot flag was never set.
func SelectUnflaggedHits(db *sql.DB) ([]UnflaggedEvent, error) {
	rows, err := db.Query(`SELECT id, ua, ip FROM split_hits WHERE is_bot IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("select unflagged hits: %w", err)
	}
	defer rows.Close()
	return scanUnflagged(rows)
}

func UpdateHitBotFlag(db *sql.DB, id int64, isBot bool) error {
	_, err := db.Exec(`UPDATE split_hits SET is_bot = ? WHERE id = ?`, boolToInt(isBot), id)
	if err != nil {
		return fmt.Errorf("update hit bot flag: %w", err)
	}
	return nil
}
