package handlers

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/nohow2117/gotracker/internal/analytics"
	"github.com/nohow2117/gotracker/internal/botdetect"
	"github.com/nohow2117/gotracker/internal/config"
	"github.com/nohow2117/gotracker/internal/resolver"
)

// trackingParams are the only query parameters /go propagates onto the
// destination URL.
var trackingParams = []string{
	"plp", "utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term", "fbclid", "gclid",
}

// GoHandler serves /go: it vets a caller-supplied destination against the
// scheme/host rules and the domain allow-list, logs one click event, and
// issues a 302 with tracking parameters carried over.
type GoHandler struct {
	Cfg        *config.Config
	Resolver   resolver.Resolver
	Recorder   *analytics.Recorder
	Classifier *botdetect.Classifier
}

func (h *GoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		http.Error(w, "Forbidden: HEAD requests disallowed.", http.StatusForbidden)
		return
	}

	ua := r.UserAgent()
	if botdetect.IsBlockedUA(ua) {
		http.Error(w, "Forbidden: Bot traffic disallowed.", http.StatusForbidden)
		return
	}

	ip := clientIP(r)
	if h.Classifier != nil && h.Classifier.CheckRDNS && h.Classifier.RDNSBot(r.Context(), ip) {
		http.Error(w, "Forbidden: Bot traffic disallowed.", http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	dest := q.Get("dest")
	if dest == "" {
		http.Error(w, "Error: Missing destination parameter.", http.StatusBadRequest)
		return
	}

	parsed, err := url.Parse(dest)
	if err != nil {
		http.Error(w, "Error: Invalid destination URL.", http.StatusBadRequest)
		return
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		http.Error(w, "Destination protocol not allowed.", http.StatusBadRequest)
		return
	}

	host := strings.ToLower(parsed.Hostname())
	if isDangerousHost(host) {
		http.Error(w, "Destination to IP/localhost/private network is not allowed.", http.StatusBadRequest)
		return
	}
	if !h.Cfg.IsDomainAllowed(host) {
		http.Error(w, "Destination domain is not allowed.", http.StatusBadRequest)
		return
	}

	// Infer the landing-page slug from a same-site referer when the caller
	// did not pass one. Best-effort: lookup failures are ignored.
	plp := q.Get("plp")
	referer := r.Referer()
	if plp == "" && referer != "" && h.Cfg.SiteHost != "" {
		if slug := h.inferPLP(referer); slug != "" {
			plp = slug
			q.Set("plp", slug)
		}
	}

	h.Recorder.PushClick(analytics.RawClick{
		Time:        time.Now().UTC(),
		IP:          ip,
		UserAgent:   ua,
		Referer:     referer,
		Dest:        dest,
		DestHost:    host,
		PLP:         plp,
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
		UTMContent:  q.Get("utm_content"),
		UTMTerm:     q.Get("utm_term"),
		FBCLID:      q.Get("fbclid"),
		GCLID:       q.Get("gclid"),
	})

	propagate := url.Values{}
	for _, k := range trackingParams {
		if v := q.Get(k); v != "" {
			propagate.Set(k, v)
		}
	}

	http.Redirect(w, r, mergeQuery(dest, propagate), http.StatusFound)
}

func (h *GoHandler) inferPLP(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || !strings.EqualFold(u.Hostname(), h.Cfg.SiteHost) {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	slug, err := h.Resolver.SlugForURL(u.String())
	if err != nil {
		return ""
	}
	return slug
}

// isDangerousHost rejects localhost and IP-literal destinations in loopback
// or private ranges.
func isDangerousHost(host string) bool {
	if host == "" || host == "localhost" {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified()
}

// clientIP extracts the peer address; chi's RealIP middleware has already
// rewritten RemoteAddr from X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
