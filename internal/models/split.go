package models

import (
	"database/sql"
	"fmt"
	"time"
)

type SplitTest struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Variant struct {
	ID        int64     `json:"id"`
	TestID    int64     `json:"test_id"`
	PageID    int64     `json:"page_id"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TestWithVariants struct {
	SplitTest
	Variants []Variant `json:"variants"`
}

// CreateSplitTest inserts a test and its variants in one transaction.
// Weights below 1 are coerced to 1.
func CreateSplitTest(db *sql.DB, t *SplitTest, variants []Variant) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO split_tests (slug, name, active) VALUES (?, ?, ?)`,
		t.Slug, t.Name, boolToInt(t.Active),
	)
	if err != nil {
		return fmt.Errorf("insert split test: %w", err)
	}
	id, _ := res.LastInsertId()
	t.ID = id

	if err := insertVariants(tx, id, variants); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return GetSplitTestByID(db, t)
}

func GetSplitTestByID(db *sql.DB, t *SplitTest) error {
	row := db.QueryRow(`SELECT id, slug, name, active, created_at, updated_at FROM split_tests WHERE id = ?`, t.ID)
	return scanSplitTest(row, t)
}

func GetSplitTestBySlug(db *sql.DB, slug string) (*SplitTest, error) {
	t := &SplitTest{}
	row := db.QueryRow(`SELECT id, slug, name, active, created_at, updated_at FROM split_tests WHERE slug = ?`, slug)
	if err := scanSplitTest(row, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTestWithVariants loads a test by slug together with its variants in
// stored order. Returns sql.ErrNoRows if the slug is unknown.
func GetTestWithVariants(db *sql.DB, slug string) (*TestWithVariants, error) {
	t, err := GetSplitTestBySlug(db, slug)
	if err != nil {
		return nil, err
	}
	variants, err := VariantsForTest(db, t.ID)
	if err != nil {
		return nil, err
	}
	return &TestWithVariants{SplitTest: *t, Variants: variants}, nil
}

func VariantsForTest(db *sql.DB, testID int64) ([]Variant, error) {
	rows, err := db.Query(
		`SELECT id, test_id, page_id, weight, created_at, updated_at FROM split_variants WHERE test_id = ? ORDER BY id`,
		testID,
	)
	if err != nil {
		return nil, fmt.Errorf("variants for test: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.TestID, &v.PageID, &v.Weight, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func ListSplitTests(db *sql.DB) ([]SplitTest, error) {
	rows, err := db.Query(`SELECT id, slug, name, active, created_at, updated_at FROM split_tests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list split tests: %w", err)
	}
	defer rows.Close()

	var tests []SplitTest
	for rows.Next() {
		var t SplitTest
		var active int
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan split test: %w", err)
		}
		t.Active = active == 1
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// UpdateSplitTest updates name/active and replaces the variant set. The slug
// is immutable: it appears in public URLs and sticky cookies.
func UpdateSplitTest(db *sql.DB, t *SplitTest, variants []Variant) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE split_tests SET name = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.Name, boolToInt(t.Active), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update split test: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.Exec(`DELETE FROM split_variants WHERE test_id = ?`, t.ID); err != nil {
		return fmt.Errorf("clear variants: %w", err)
	}
	if err := insertVariants(tx, t.ID, variants); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return GetSplitTestByID(db, t)
}

func DeleteSplitTest(db *sql.DB, slug string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRow(`SELECT id FROM split_tests WHERE slug = ?`, slug).Scan(&id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM split_variants WHERE test_id = ?`, id); err != nil {
		return fmt.Errorf("delete variants: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM split_tests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete split test: %w", err)
	}
	return tx.Commit()
}

func insertVariants(tx *sql.Tx, testID int64, variants []Variant) error {
	stmt, err := tx.Prepare(`INSERT INTO split_variants (test_id, page_id, weight) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare variant insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range variants {
		weight := v.Weight
		if weight < 1 {
			weight = 1
		}
		if _, err := stmt.Exec(testID, v.PageID, weight); err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}
	return nil
}

func scanSplitTest(row *sql.Row, t *SplitTest) error {
	var active int
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	t.Active = active == 1
	return nil
}
