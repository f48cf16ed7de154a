package backfill

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/nohow2117/gotracker/internal/botdetect"
	"github.com/nohow2117/gotracker/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func insertLegacyClick(t *testing.T, database *sql.DB, ua string) {
	t.Helper()
	_, err := database.Exec(
		`INSERT INTO go_clicks (ts, ua, dest, dest_host) VALUES (?, ?, 'https://example.com', 'example.com')`,
		time.Now().UTC(), ua,
	)
	if err != nil {
		t.Fatal(err)
	}
}

func insertLegacyHit(t *testing.T, database *sql.DB, ua string) {
	t.Helper()
	_, err := database.Exec(
		`INSERT INTO split_hits (ts, test_slug, variant_id, client_id, ua) VALUES (?, 'legacy', 1, 'x', ?)`,
		time.Now().UTC(), ua,
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestRun_ClassifiesUnflaggedRows(t *testing.T) {
	database := testDB(t)
	insertLegacyClick(t, database, "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	insertLegacyClick(t, database, "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	insertLegacyHit(t, database, "AhrefsBot/7.0")

	res, err := Run(context.Background(), database, &botdetect.Classifier{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Clicks != 2 || res.Hits != 1 {
		t.Fatalf("result = %+v, want 2 clicks and 1 hit", res)
	}

	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM go_clicks WHERE is_bot IS NULL`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("unflagged clicks = %d, want 0", n)
	}

	var isBot int
	err = database.QueryRow(`SELECT is_bot FROM go_clicks WHERE ua LIKE '%Googlebot%'`).Scan(&isBot)
	if err != nil {
		t.Fatal(err)
	}
	if isBot != 1 {
		t.Errorf("Googlebot click is_bot = %d, want 1", isBot)
	}
	err = database.QueryRow(`SELECT is_bot FROM go_clicks WHERE ua LIKE '%Chrome%'`).Scan(&isBot)
	if err != nil {
		t.Fatal(err)
	}
	if isBot != 0 {
		t.Errorf("Chrome click is_bot = %d, want 0", isBot)
	}
	err = database.QueryRow(`SELECT is_bot FROM split_hits WHERE ua LIKE '%AhrefsBot%'`).Scan(&isBot)
	if err != nil {
		t.Fatal(err)
	}
	if isBot != 1 {
		t.Errorf("AhrefsBot hit is_bot = %d, want 1", isBot)
	}
}

func TestRun_RefusesSecondRun(t *testing.T) {
	database := testDB(t)
	insertLegacyClick(t, database, "Googlebot/2.1")

	if _, err := Run(context.Background(), database, &botdetect.Classifier{}); err != nil {
		t.Fatal(err)
	}

	insertLegacyClick(t, database, "AhrefsBot/7.0")
	_, err := Run(context.Background(), database, &botdetect.Classifier{})
	if !errors.Is(err, ErrAlreadyDone) {
		t.Fatalf("err = %v, want ErrAlreadyDone", err)
	}

	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM go_clicks WHERE is_bot IS NULL`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("unflagged clicks = %d, want the later row untouched", n)
	}
}

func TestReset_AllowsRerun(t *testing.T) {
	database := testDB(t)
	if _, err := Run(context.Background(), database, &botdetect.Classifier{}); err != nil {
		t.Fatal(err)
	}

	if err := Reset(database); err != nil {
		t.Fatal(err)
	}

	insertLegacyClick(t, database, "Googlebot/2.1")
	res, err := Run(context.Background(), database, &botdetect.Classifier{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Clicks != 1 {
		t.Errorf("clicks = %d, want 1 after reset", res.Clicks)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	database := testDB(t)
	insertLegacyClick(t, database, "Googlebot/2.1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, database, &botdetect.Classifier{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// Completion marker must not be set after an interrupted run.
	if _, err := Run(context.Background(), database, &botdetect.Classifier{}); err != nil {
		t.Fatalf("rerun after cancel: %v", err)
	}
}
