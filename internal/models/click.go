package models

import (
	"database/sql"
	"fmt"
	"time"
)

// ClickEvent is one audited outbound click on /go. Rows are append-only; the
// only permitted update is the one-time bot-flag backfill.
type ClickEvent struct {
	ID          int64
	TS          time.Time
	IP          []byte // 16-byte binary form, IPv4-mapped or native IPv6
	UserAgent   string
	Referrer    string
	Dest        string
	DestHost    string
	PLP         string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMContent  string
	UTMTerm     string
	FBCLID      string
	GCLID       string
	IsBot       bool
}

func BatchInsertClickEvents(db *sql.DB, events []ClickEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO go_clicks (ts, ip, ua, referrer, dest, dest_host, plp, utm_source, utm_medium, utm_campaign, utm_content, utm_term, fbclid, gclid, is_bot) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.Exec(
			e.TS, e.IP, e.UserAgent, e.Referrer, e.Dest, e.DestHost, e.PLP,
			e.UTMSource, e.UTMMedium, e.UTMCampaign, e.UTMContent, e.UTMTerm,
			e.FBCLID, e.GCLID, boolToInt(e.IsBot),
		)
		if err != nil {
			return fmt.Errorf("insert click event: %w", err)
		}
	}

	return tx.Commit()
}

// UnflaggedEvent is the projection the backfill job works on.
type UnflaggedEvent struct {
	ID        int64
	UserAgent string
	IP        []byte
}

// SelectUnflaggedClicks returns click rows whose bot flag was never set.
func SelectUnflaggedClicks(db *sql.DB) ([]UnflaggedEvent, error) {
	rows, err := db.Query(`SELECT id, ua, ip FROM go_clicks WHERE is_bot IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("select unflagged clicks: %w", err)
	}
	defer rows.Close()
	return scanUnflagged(rows)
}

func UpdateClickBotFlag(db *sql.DB, id int64, isBot bool) error {
	_, err := db.Exec(`UPDATE go_clicks SET is_bot = ? WHERE id = ?`, boolToInt(isBot), id)
	if err != nil {
		return fmt.Errorf("update click bot flag: %w", err)
	}
	return nil
}

func scanUnflagged(rows *sql.Rows) ([]UnflaggedEvent, error) {
	var events []UnflaggedEvent
	for rows.Next() {
		var e UnflaggedEvent
		if err := rows.Scan(&e.ID, &e.UserAgent, &e.IP); err != nil {
			return nil, fmt.Errorf("scan unflagged row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
