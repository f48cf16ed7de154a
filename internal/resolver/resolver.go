package resolver

import (
	"database/sql"

	"github.com/nohow2117/gotracker/internal/models"
)

// Resolver is the content-resolution collaborator: it maps opaque content ids
// to published URLs and referring URLs back to content slugs. The redirect
// core never touches content rows directly.
type Resolver interface {
	// PublishedURL returns the page's URL, or "" if the page does not exist
	// or is not currently published.
	PublishedURL(pageID int64) (string, error)

	// SlugForURL maps an exact page URL to its slug, or "" when unknown.
	SlugForURL(url string) (string, error)
}

// PageResolver reads the pages table owned by the publishing platform.
type PageResolver struct {
	DB *sql.DB
}

func (r *PageResolver) PublishedURL(pageID int64) (string, error) {
	p, err := models.GetPageByID(r.DB, pageID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if p.Status != models.PageStatusPublished {
		return "", nil
	}
	return p.URL, nil
}

func (r *PageResolver) SlugForURL(url string) (string, error) {
	slug, err := models.GetPageSlugByURL(r.DB, url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return slug, nil
}
