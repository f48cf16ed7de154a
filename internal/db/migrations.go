package db

import "database/sql"

func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS go_clicks (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ts            DATETIME NOT NULL,
    ip            BLOB,
    ua            TEXT    NOT NULL DEFAULT '',
    referrer      TEXT    NOT NULL DEFAULT '',
    dest          TEXT    NOT NULL,
    dest_host     TEXT    NOT NULL,
    plp           TEXT    NOT NULL DEFAULT '',
    utm_source    TEXT    NOT NULL DEFAULT '',
    utm_medium    TEXT    NOT NULL DEFAULT '',
    utm_campaign  TEXT    NOT NULL DEFAULT '',
    utm_content   TEXT    NOT NULL DEFAULT '',
    utm_term      TEXT    NOT NULL DEFAULT '',
    fbclid        TEXT    NOT NULL DEFAULT '',
    gclid         TEXT    NOT NULL DEFAULT '',
    is_bot        INTEGER
);

CREATE INDEX IF NOT EXISTS idx_go_clicks_ts ON go_clicks(ts);
CREATE INDEX IF NOT EXISTS idx_go_clicks_plp ON go_clicks(plp);
CREATE INDEX IF NOT EXISTS idx_go_clicks_dest_host ON go_clicks(dest_host);

CREATE TABLE IF NOT EXISTS split_tests (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    slug          TEXT    NOT NULL UNIQUE,
    name          TEXT    NOT NULL,
    active        INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS split_variants (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    test_id       INTEGER NOT NULL,
    page_id       INTEGER NOT NULL,
    weight        INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (test_id) REFERENCES split_tests(id)
);

CREATE INDEX IF NOT EXISTS idx_split_variants_test ON split_variants(test_id);
CREATE INDEX IF NOT EXISTS idx_split_variants_page ON split_variants(page_id);

CREATE TABLE IF NOT EXISTS split_hits (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ts            DATETIME NOT NULL,
    test_slug     TEXT    NOT NULL,
    variant_id    INTEGER NOT NULL,
    client_id     TEXT    NOT NULL DEFAULT '',
    ip            BLOB,
    ua            TEXT    NOT NULL DEFAULT '',
    referrer      TEXT    NOT NULL DEFAULT '',
    geo_country   TEXT    NOT NULL DEFAULT '',
    geo_city      TEXT    NOT NULL DEFAULT '',
    device_type   TEXT    NOT NULL DEFAULT '',
    is_bot        INTEGER
);

CREATE INDEX IF NOT EXISTS idx_split_hits_ts ON split_hits(ts);
CREATE INDEX IF NOT EXISTS idx_split_hits_test ON split_hits(test_slug);
CREATE INDEX IF NOT EXISTS idx_split_hits_variant ON split_hits(variant_id);

CREATE TABLE IF NOT EXISTS pages (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    slug          TEXT    NOT NULL UNIQUE,
    url           TEXT    NOT NULL,
    status        TEXT    NOT NULL DEFAULT 'published',
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

CREATE TABLE IF NOT EXISTS settings (
    key           TEXT PRIMARY KEY,
    value         TEXT NOT NULL
);
`
