package analytics

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/netip"
	"time"

	"github.com/mssola/useragent"

	"github.com/nohow2117/gotracker/internal/botdetect"
	"github.com/nohow2117/gotracker/internal/geo"
	"github.com/nohow2117/gotracker/internal/models"
)

// RawClick is an outbound click as captured on the request path, before
// enrichment.
type RawClick struct {
	Time        time.Time
	IP          string
	UserAgent   string
	Referer     string
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
}

// RawHit is a split-test hit as captured on the request path.
type RawHit struct {
	Time      time.Time
	TestSlug  string
	VariantID int64
	ClientID  string
	IP        string
	UserAgent string
	Referer   string
}

// Recorder buffers audit events and writes them in batches off the request
// path. Geo, device and bot enrichment happen at flush time, so a slow
// lookup can never delay a redirect.
type Recorder struct {
	clicks     chan RawClick
	hits       chan RawHit
	stop       chan struct{}
	done       chan struct{}
	db         *sql.DB
	geo        geo.Source
	classifier *botdetect.Classifier
}

func NewRecorder(db *sql.DB, geoSource geo.Source, classifier *botdetect.Classifier, bufferSize int, flushInterval time.Duration) *Recorder {
	r := &Recorder{
		clicks:     make(chan RawClick, bufferSize),
		hits:       make(chan RawHit, bufferSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		db:         db,
		geo:        geoSource,
		classifier: classifier,
	}
	go r.run(flushInterval)
	return r
}

// PushClick queues a click event non-blocking. Drops the event if the buffer
// is full.
func (r *Recorder) PushClick(click RawClick) {
	select {
	case r.clicks <- click:
	default:
		// buffer full, drop event
	}
}

// PushHit queues a split hit non-blocking. Drops the event if the buffer is
// full.
func (r *Recorder) PushHit(hit RawHit) {
	select {
	case r.hits <- hit:
	default:
		// buffer full, drop event
	}
}

// Shutdown flushes remaining events and returns.
func (r *Recorder) Shutdown() {
	close(r.stop)
	<-r.done
}

func (r *Recorder) run(interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.stop:
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	var clickBatch []RawClick
	var hitBatch []RawHit
	for {
		select {
		case raw := <-r.clicks:
			clickBatch = append(clickBatch, raw)
		case raw := <-r.hits:
			hitBatch = append(hitBatch, raw)
		default:
			goto done
		}
	}
done:
	if len(clickBatch) > 0 {
		events := make([]models.ClickEvent, 0, len(clickBatch))
		for _, raw := range clickBatch {
			events = append(events, r.enrichClick(raw))
		}
		if err := models.BatchInsertClickEvents(r.db, events); err != nil {
			log.Printf("analytics: click flush error: %v", err)
		}
	}
	if len(hitBatch) > 0 {
		hits := make([]models.SplitHit, 0, len(hitBatch))
		for _, raw := range hitBatch {
			hits = append(hits, r.enrichHit(raw))
		}
		if err := models.BatchInsertSplitHits(r.db, hits); err != nil {
			log.Printf("analytics: hit flush error: %v", err)
		}
	}
}

func (r *Recorder) enrichClick(raw RawClick) models.ClickEvent {
	return models.ClickEvent{
		TS:          raw.Time,
		IP:          IPToBinary(raw.IP),
		UserAgent:   raw.UserAgent,
		Referrer:    raw.Referer,
		Dest:        raw.Dest,
		DestHost:    raw.DestHost,
		PLP:         raw.PLP,
		UTMSource:   raw.UTMSource,
		UTMMedium:   raw.UTMMedium,
		UTMCampaign: raw.UTMCampaign,
		UTMContent:  raw.UTMContent,
		UTMTerm:     raw.UTMTerm,
		FBCLID:      raw.FBCLID,
		GCLID:       raw.GCLID,
		IsBot:       botdetect.IsCrawlerUA(raw.UserAgent),
	}
}

func (r *Recorder) enrichHit(raw RawHit) models.SplitHit {
	ua := useragent.New(raw.UserAgent)
	deviceType := "desktop"
	if ua.Mobile() {
		deviceType = "mobile"
	}

	var geoResult geo.Result
	if isPublicIP(raw.IP) {
		geoResult = r.geo.Lookup(raw.IP)
	}

	return models.SplitHit{
		TS:         raw.Time,
		TestSlug:   raw.TestSlug,
		VariantID:  raw.VariantID,
		ClientID:   raw.ClientID,
		IP:         IPToBinary(raw.IP),
		UserAgent:  raw.UserAgent,
		Referrer:   raw.Referer,
		GeoCountry: geoResult.Country,
		GeoCity:    geoResult.City,
		DeviceType: deviceType,
		IsBot:      r.classifier.Classify(context.Background(), raw.UserAgent, raw.IP),
	}
}

// IPToBinary converts an address to its 16-byte form (IPv4-mapped or native
// IPv6). Returns nil for unparseable input.
func IPToBinary(ipStr string) []byte {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil
	}
	return ip.To16()
}

func isPublicIP(ipStr string) bool {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return false
	}
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified())
}
