package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nohow2117/gotracker/internal/backfill"
	"github.com/nohow2117/gotracker/internal/botdetect"
	"github.com/nohow2117/gotracker/internal/cache"
	"github.com/nohow2117/gotracker/internal/config"
	"github.com/nohow2117/gotracker/internal/models"
	"github.com/nohow2117/gotracker/internal/slug"
)

// AdminHandler is the authenticated JSON API for managing split tests,
// resetting per-test stats and triggering the bot-flag backfill.
type AdminHandler struct {
	DB         *sql.DB
	Cfg        *config.Config
	Cache      *cache.TestCache
	Classifier *botdetect.Classifier
}

type variantRequest struct {
	PageID int64 `json:"page_id"`
	Weight int   `json:"weight"`
}

type testRequest struct {
	Slug     string           `json:"slug"`
	Name     string           `json:"name"`
	Active   *bool            `json:"active"`
	Variants []variantRequest `json:"variants"`
}

func (h *AdminHandler) CreateTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	if len(req.Variants) == 0 {
		jsonError(w, "at least one variant is required", http.StatusBadRequest)
		return
	}

	testSlug := slug.Normalize(req.Slug)
	if testSlug == "" {
		// Auto-generate with collision retry.
		for i := 0; i < 10; i++ {
			candidate, err := slug.Generate()
			if err != nil {
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
			candidate = slug.Normalize(candidate)
			if _, err := models.GetSplitTestBySlug(h.DB, candidate); err == sql.ErrNoRows {
				testSlug = candidate
				break
			}
		}
		if testSlug == "" {
			jsonError(w, "failed to generate unique slug", http.StatusInternalServerError)
			return
		}
	} else if _, err := models.GetSplitTestBySlug(h.DB, testSlug); err == nil {
		jsonError(w, "slug already exists", http.StatusConflict)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	test := &models.SplitTest{Slug: testSlug, Name: req.Name, Active: active}
	if err := models.CreateSplitTest(h.DB, test, toVariants(req.Variants)); err != nil {
		jsonError(w, "failed to create test: "+err.Error(), http.StatusInternalServerError)
		return
	}

	full, err := models.GetTestWithVariants(h.DB, testSlug)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(full)
}

func (h *AdminHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := models.ListSplitTests(h.DB)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if tests == nil {
		tests = []models.SplitTest{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tests)
}

func (h *AdminHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	test, ok := h.lookupTest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(test)
}

// UpdateTest updates name/active and replaces the variant set wholesale.
// The slug is immutable: it lives in public URLs and sticky cookies.
func (h *AdminHandler) UpdateTest(w http.ResponseWriter, r *http.Request) {
	test, ok := h.lookupTest(w, r)
	if !ok {
		return
	}

	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	updated := test.SplitTest
	if req.Name != "" {
		updated.Name = req.Name
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	variants := test.Variants
	if req.Variants != nil {
		variants = toVariants(req.Variants)
	}

	if err := models.UpdateSplitTest(h.DB, &updated, variants); err != nil {
		jsonError(w, "failed to update: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Cache.Invalidate(test.Slug)

	full, err := models.GetTestWithVariants(h.DB, test.Slug)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(full)
}

func (h *AdminHandler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	testSlug := slug.Normalize(chi.URLParam(r, "slug"))
	if err := models.DeleteSplitTest(h.DB, testSlug); err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.Cache.Invalidate(testSlug)
	w.WriteHeader(http.StatusNoContent)
}

// ResetStats deletes all hits for a test, returning the deleted row count.
func (h *AdminHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	test, ok := h.lookupTest(w, r)
	if !ok {
		return
	}
	deleted, err := models.DeleteSplitHits(h.DB, test.Slug)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}

// RunBackfill triggers the one-time bot-flag reclassification. A second call
// after completion returns 409.
func (h *AdminHandler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	res, err := backfill.Run(r.Context(), h.DB, h.Classifier)
	if err != nil {
		if err == backfill.ErrAlreadyDone {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		jsonError(w, "backfill failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *AdminHandler) lookupTest(w http.ResponseWriter, r *http.Request) (*models.TestWithVariants, bool) {
	testSlug := slug.Normalize(chi.URLParam(r, "slug"))
	test, err := models.GetTestWithVariants(h.DB, testSlug)
	if err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "not found", http.StatusNotFound)
			return nil, false
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return test, true
}

func toVariants(reqs []variantRequest) []models.Variant {
	variants := make([]models.Variant, 0, len(reqs))
	for _, v := range reqs {
		variants = append(variants, models.Variant{PageID: v.PageID, Weight: v.Weight})
	}
	return variants
}
