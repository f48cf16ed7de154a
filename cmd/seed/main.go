package main

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nohow2117/gotracker/internal/db"
	"github.com/nohow2117/gotracker/internal/models"
)

type seedPage struct {
	slug   string
	url    string
	status string
	// weight controls relative traffic volume (higher = more clicks)
	weight float64
}

var pages = []seedPage{
	{"summer-sale", "https://site.example/summer-sale", "published", 5.0},
	{"summer-sale-b", "https://site.example/summer-sale-b", "published", 4.5},
	{"crypto-guide", "https://site.example/crypto-guide", "published", 4.0},
	{"crypto-guide-v2", "https://site.example/crypto-guide-v2", "published", 3.5},
	{"broker-review", "https://site.example/broker-review", "published", 3.0},
	{"newsletter", "https://site.example/newsletter", "published", 2.0},
	{"black-friday", "https://site.example/black-friday", "draft", 0},
	{"old-promo", "https://site.example/old-promo", "trash", 0},
}

type seedTest struct {
	slug     string
	name     string
	active   bool
	variants []struct {
		pageSlug string
		weight   int
	}
}

var tests = []seedTest{
	{"summer-sale", "Summer Sale Landing", true, []struct {
		pageSlug string
		weight   int
	}{
		{"summer-sale", 3},
		{"summer-sale-b", 1},
	}},
	{"crypto", "Crypto Guide Rewrite", true, []struct {
		pageSlug string
		weight   int
	}{
		{"crypto-guide", 1},
		{"crypto-guide-v2", 1},
	}},
	{"bf-teaser", "Black Friday Teaser", false, []struct {
		pageSlug string
		weight   int
	}{
		{"black-friday", 1},
		{"summer-sale", 1},
	}},
}

var destinations = []struct {
	url    string
	weight float64
}{
	{"https://broker-one.example/signup", 30},
	{"https://broker-two.example/open-account", 20},
	{"https://exchange.example/register", 15},
	{"https://cards.example/compare", 10},
	{"https://broker-one.example/demo", 8},
	{"https://exchange.example/pricing", 5},
}

var sources = []struct {
	source string
	medium string
	weight float64
}{
	{"", "", 30}, // untagged traffic
	{"facebook", "cpc", 20},
	{"google", "cpc", 18},
	{"newsletter", "email", 12},
	{"twitter", "social", 8},
	{"youtube", "video", 7},
	{"tiktok", "cpc", 5},
}

var countries = []struct {
	country string
	city    string
	weight  float64
}{
	{"Germany", "Berlin", 20},
	{"Germany", "Munich", 12},
	{"Austria", "Vienna", 10},
	{"Switzerland", "Zurich", 8},
	{"United States", "New York", 15},
	{"United Kingdom", "London", 10},
	{"Netherlands", "Amsterdam", 6},
	{"France", "Paris", 5},
	{"Spain", "Madrid", 4},
	{"Italy", "Rome", 3},
}

var userAgents = []struct {
	ua     string
	device string
	bot    bool
	weight float64
}{
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", "desktop", false, 35},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15", "desktop", false, 15},
	{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "mobile", false, 25},
	{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36", "mobile", false, 15},
	{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "desktop", true, 4},
	{"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)", "desktop", true, 3},
	{"Mozilla/5.0 (compatible; AhrefsBot/7.0; +http://ahrefs.com/robot/)", "desktop", true, 3},
}

func pickWeighted(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	v := rng.Float64() * total
	for i, w := range weights {
		v -= w
		if v <= 0 {
			return i
		}
	}
	return len(weights) - 1
}

func randomIP(rng *rand.Rand) []byte {
	ip := net.IPv4(byte(rng.Intn(224)+1), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
	return ip.To16()
}

func main() {
	dbPath := os.Getenv("GOTRACKER_DB_PATH")
	if dbPath == "" {
		dbPath = "./gotracker.db"
	}

	database, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	rng := rand.New(rand.NewSource(42)) // deterministic seed
	now := time.Now().UTC()
	threeMonthsAgo := now.AddDate(0, -3, 0)

	fmt.Println("Seeding pages...")

	pageIDs := make(map[string]int64, len(pages))
	for _, sp := range pages {
		p := models.Page{Slug: sp.slug, URL: sp.url, Status: sp.status}
		if err := models.CreatePage(database, &p); err != nil {
			log.Fatalf("create page %q: %v", sp.slug, err)
		}
		pageIDs[sp.slug] = p.ID
		fmt.Printf("  [%2d] %-16s %s (%s)\n", p.ID, sp.slug, sp.url, sp.status)
	}

	fmt.Println("\nSeeding split tests...")

	variantIDs := make(map[string][]models.Variant, len(tests))
	for _, st := range tests {
		variants := make([]models.Variant, 0, len(st.variants))
		for _, v := range st.variants {
			variants = append(variants, models.Variant{PageID: pageIDs[v.pageSlug], Weight: v.weight})
		}
		test := models.SplitTest{Slug: st.slug, Name: st.name, Active: st.active}
		if err := models.CreateSplitTest(database, &test, variants); err != nil {
			log.Fatalf("create test %q: %v", st.slug, err)
		}
		stored, err := models.VariantsForTest(database, test.ID)
		if err != nil {
			log.Fatalf("load variants for %q: %v", st.slug, err)
		}
		variantIDs[st.slug] = stored
		fmt.Printf("  /split/%-12s %d variants (active=%v)\n", st.slug, len(stored), st.active)
	}

	destWeights := make([]float64, len(destinations))
	for i, d := range destinations {
		destWeights[i] = d.weight
	}
	srcWeights := make([]float64, len(sources))
	for i, s := range sources {
		srcWeights[i] = s.weight
	}
	geoWeights := make([]float64, len(countries))
	for i, c := range countries {
		geoWeights[i] = c.weight
	}
	uaWeights := make([]float64, len(userAgents))
	for i, u := range userAgents {
		uaWeights[i] = u.weight
	}
	pageWeights := make([]float64, len(pages))
	for i, p := range pages {
		pageWeights[i] = p.weight
	}

	fmt.Println("\nGenerating outbound clicks...")

	totalClicks := 0
	var clicks []models.ClickEvent
	for day := threeMonthsAgo; day.Before(now); day = day.Add(24 * time.Hour) {
		// Weekend dip plus daily variance
		perDay := 40.0 * (0.6 + rng.Float64()*0.8)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			perDay *= 0.4
		}

		for j := 0; j < int(perDay); j++ {
			ts := time.Date(day.Year(), day.Month(), day.Day(), rng.Intn(24), rng.Intn(60), rng.Intn(60), 0, time.UTC)
			if ts.After(now) {
				continue
			}

			dest := destinations[pickWeighted(rng, destWeights)]
			src := sources[pickWeighted(rng, srcWeights)]
			agent := userAgents[pickWeighted(rng, uaWeights)]
			page := pages[pickWeighted(rng, pageWeights)]

			destHost := hostOf(dest.url)
			campaign := ""
			if src.source != "" {
				campaign = "q3-promo"
			}

			clicks = append(clicks, models.ClickEvent{
				TS:          ts,
				IP:          randomIP(rng),
				UserAgent:   agent.ua,
				Referrer:    page.url,
				Dest:        dest.url,
				DestHost:    destHost,
				PLP:         page.slug,
				UTMSource:   src.source,
				UTMMedium:   src.medium,
				UTMCampaign: campaign,
				IsBot:       agent.bot,
			})

			if len(clicks) >= 500 {
				if err := models.BatchInsertClickEvents(database, clicks); err != nil {
					log.Fatalf("insert clicks: %v", err)
				}
				totalClicks += len(clicks)
				clicks = clicks[:0]
			}
		}
	}
	if len(clicks) > 0 {
		if err := models.BatchInsertClickEvents(database, clicks); err != nil {
			log.Fatalf("insert clicks: %v", err)
		}
		totalClicks += len(clicks)
	}
	fmt.Printf("  %d clicks\n", totalClicks)

	fmt.Println("\nGenerating split hits...")

	// A pool of returning visitors so sticky client ids repeat.
	clientPool := make([]string, 400)
	for i := range clientPool {
		clientPool[i] = uuid.NewString()
	}

	totalHits := 0
	var hits []models.SplitHit
	for _, st := range tests {
		if !st.active {
			continue
		}
		variants := variantIDs[st.slug]
		vWeights := make([]float64, len(variants))
		for i, v := range variants {
			vWeights[i] = float64(v.Weight)
		}

		for day := threeMonthsAgo; day.Before(now); day = day.Add(24 * time.Hour) {
			perDay := 25.0 * (0.6 + rng.Float64()*0.8)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				perDay *= 0.5
			}

			for j := 0; j < int(perDay); j++ {
				ts := time.Date(day.Year(), day.Month(), day.Day(), rng.Intn(24), rng.Intn(60), rng.Intn(60), 0, time.UTC)
				if ts.After(now) {
					continue
				}

				variant := variants[pickWeighted(rng, vWeights)]
				agent := userAgents[pickWeighted(rng, uaWeights)]
				geo := countries[pickWeighted(rng, geoWeights)]

				hits = append(hits, models.SplitHit{
					TS:         ts,
					TestSlug:   st.slug,
					VariantID:  variant.ID,
					ClientID:   clientPool[rng.Intn(len(clientPool))],
					IP:         randomIP(rng),
					UserAgent:  agent.ua,
					Referrer:   "https://facebook.com/",
					GeoCountry: geo.country,
					GeoCity:    geo.city,
					DeviceType: agent.device,
					IsBot:      agent.bot,
				})

				if len(hits) >= 500 {
					if err := models.BatchInsertSplitHits(database, hits); err != nil {
						log.Fatalf("insert hits: %v", err)
					}
					totalHits += len(hits)
					hits = hits[:0]
				}
			}
		}
		fmt.Printf("  /split/%-12s hits generated\n", st.slug)
	}
	if len(hits) > 0 {
		if err := models.BatchInsertSplitHits(database, hits); err != nil {
			log.Fatalf("insert hits: %v", err)
		}
		totalHits += len(hits)
	}

	fmt.Printf("\nDone! %d pages, %d tests, %d clicks, %d hits.\n", len(pages), len(tests), totalClicks, totalHits)
	fmt.Printf("Database: %s\n", dbPath)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
