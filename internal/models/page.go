package models

import (
	"database/sql"
	"fmt"
	"time"
)

const PageStatusPublished = "published"

// Page mirrors the publishing platform's content table. The redirect core
// only ever reads it; cmd/seed (and the platform itself) writes it.
type Page struct {
	ID        int64
	Slug      string
	URL       string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func CreatePage(db *sql.DB, p *Page) error {
	if p.Status == "" {
		p.Status = PageStatusPublished
	}
	res, err := db.Exec(
		`INSERT INTO pages (slug, url, status) VALUES (?, ?, ?)`,
		p.Slug, p.URL, p.Status,
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	id, _ := res.LastInsertId()
	p.ID = id
	return nil
}

func GetPageByID(db *sql.DB, id int64) (*Page, error) {
	p := &Page{}
	row := db.QueryRow(`SELECT id, slug, url, status, created_at, updated_at FROM pages WHERE id = ?`, id)
	if err := row.Scan(&p.ID, &p.Slug, &p.URL, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPageSlugByURL maps an exact page URL back to its slug. Used for PLP
// inference from the referer on /go.
func GetPageSlugByURL(db *sql.DB, url string) (string, error) {
	var slug string
	err := db.QueryRow(`SELECT slug FROM pages WHERE url = ?`, url).Scan(&slug)
	if err != nil {
		return "", err
	}
	return slug, nil
}

func SetPageStatus(db *sql.DB, id int64, status string) error {
	res, err := db.Exec(`UPDATE pages SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set page status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
