package handlers

import (
	"database/sql"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nohow2117/gotracker/internal/analytics"
	"github.com/nohow2117/gotracker/internal/cache"
	"github.com/nohow2117/gotracker/internal/models"
	"github.com/nohow2117/gotracker/internal/resolver"
	"github.com/nohow2117/gotracker/internal/slug"
)

const (
	// Cookie names are part of the public contract; changing them orphans
	// every sticky assignment in the wild.
	stickyCookiePrefix = "GoWPTrackerSplit_"
	clientIDCookie     = "GoWPTrackerCID"

	stickyMaxAge   = 30 * 24 * time.Hour
	clientIDMaxAge = 365 * 24 * time.Hour
)

// SplitHandler serves /split/{slug}: weighted variant selection with sticky
// affinity, hit logging, query propagation, 302. Bots are never blocked here:
// ad and social-network preview crawlers must be able to reach the landing
// page. Bot status is recorded for analytics filtering only.
type SplitHandler struct {
	DB       *sql.DB
	Cache    *cache.TestCache
	Resolver resolver.Resolver
	Recorder *analytics.Recorder

	// rng overrides the selection roll in tests; nil means rand.IntN.
	rng func(n int) int
}

func (h *SplitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	testSlug := slug.Normalize(chi.URLParam(r, "slug"))
	if testSlug == "" {
		http.NotFound(w, r)
		return
	}

	test, found := h.Cache.Get(testSlug)
	if !found {
		var err error
		test, err = models.GetTestWithVariants(h.DB, testSlug)
		if err != nil {
			if err == sql.ErrNoRows {
				http.Error(w, "Split test not found or not active.", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.Cache.Set(testSlug, test)
	}

	if !test.Active {
		http.Error(w, "Split test not found or not active.", http.StatusNotFound)
		return
	}

	// Keep only variants whose page is currently published, resolving their
	// destinations in the same pass.
	var valid []models.Variant
	urls := make(map[int64]string)
	for _, v := range test.Variants {
		destURL, err := h.Resolver.PublishedURL(v.PageID)
		if err != nil || destURL == "" {
			continue
		}
		valid = append(valid, v)
		urls[v.ID] = destURL
	}
	if len(valid) == 0 {
		http.Error(w, "No published variants available.", http.StatusNotFound)
		return
	}

	// Sticky affinity: an existing cookie wins as long as its variant is
	// still in the valid set. The cookie is not re-written in that case.
	choice, sticky := stickyChoice(r, testSlug, valid)
	if !sticky {
		roll := h.rng
		if roll == nil {
			roll = rand.Intn
		}
		choice = pickWeighted(valid, roll)
		setCookie(w, r, stickyCookiePrefix+testSlug, strconv.FormatInt(choice.ID, 10), stickyMaxAge)
	}

	dest := urls[choice.ID]

	clientID := readCookie(r, clientIDCookie)
	if clientID == "" {
		clientID = uuid.NewString()
		setCookie(w, r, clientIDCookie, clientID, clientIDMaxAge)
	}

	h.Recorder.PushHit(analytics.RawHit{
		Time:      time.Now().UTC(),
		TestSlug:  testSlug,
		VariantID: choice.ID,
		ClientID:  clientID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})

	dest = mergeQuery(dest, r.URL.Query())

	// Intermediate caches must never replay a stale selection.
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.Redirect(w, r, dest, http.StatusFound)
}

func stickyChoice(r *http.Request, testSlug string, valid []models.Variant) (models.Variant, bool) {
	value := readCookie(r, stickyCookiePrefix+testSlug)
	if value == "" {
		return models.Variant{}, false
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return models.Variant{}, false
	}
	for _, v := range valid {
		if v.ID == id {
			return v, true
		}
	}
	return models.Variant{}, false
}

// pickWeighted implements roulette selection: draw r in [1, total] and take
// the first variant whose cumulative weight reaches r, in stored order.
func pickWeighted(variants []models.Variant, intN func(n int) int) models.Variant {
	total := 0
	for _, v := range variants {
		total += max(1, v.Weight)
	}

	r := intN(total) + 1
	acc := 0
	for _, v := range variants {
		acc += max(1, v.Weight)
		if r <= acc {
			return v
		}
	}
	return variants[0]
}

func readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
