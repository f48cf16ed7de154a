package botdetect

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// Substrings matched case-insensitively against the User-Agent.

// blockSignatures is the narrow enforcement list for the /go path. A match
// means the request is rejected with 403 before any logging.
var blockSignatures = []string{
	"bot",
	"crawl",
	"spider",
	"slurp",
	"facebookexternalhit",
	"mediapartners-google",
	"adsbot",
	"bingpreview",
}

// crawlerSignatures is the broad advisory list used to flag (never block)
// traffic on the /split path and in the backfill job.
var crawlerSignatures = []string{
	// Uptime / monitoring
	"uptimerobot",
	"pingdom.com_bot_version",
	"pingdomtms",
	"statuscake",
	"uptime/1.0",
	"better uptime bot",
	"googlestackdrivermonitoring-uptimechecks",
	"datadog/synthetics",
	"amazon-route53-health-check-service",
	"site24x7",
	"freshpingbot",
	"hetrixtools",

	// Search engines
	"googlebot",
	"bingbot",
	"applebot",
	"yandexbot",
	"baiduspider",
	"duckduckbot",
	"petalbot",
	"yahoo! slurp",
	"amazonbot",

	// Social previewers
	"facebookexternalhit",
	"facebot",
	"twitterbot",
	"linkedinbot",
	"pinterestbot",
	"redditbot",
	"slackbot",
	"discordbot",
	"telegrambot",
	"whatsapp",

	// AI agents
	"gptbot",
	"chatgpt-user",
	"claudebot",
	"perplexitybot",
	"ccbot",
	"bytespider",
	"google-extended",
	"googleother",
	"oai-searchbot",
	"meta-externalagent",
	"youbot",
	"imagesiftbot",
	"omgilibot",

	// SEO crawlers
	"ahrefsbot",
	"semrushbot",
	"mj12bot",
	"dotbot",
	"botify",
	"deepcrawl",
	"screaming frog seo spider",
	"sitebulb",
	"seobilitybot",
	"seokicks",

	// Generic patterns and HTTP client libraries
	"bot",
	"crawl",
	"spider",
	"slurp",
	"scan",
	"curl",
	"wget",
	"python-requests",
}

// IsBlockedUA reports whether the user-agent matches the /go enforcement list.
func IsBlockedUA(rawUA string) bool {
	return matches(rawUA, blockSignatures)
}

// IsCrawlerUA reports whether the user-agent matches the advisory crawler
// list. Empty user-agents are not bots: real browsers always send one.
func IsCrawlerUA(rawUA string) bool {
	if matches(rawUA, crawlerSignatures) {
		return true
	}
	return rawUA != "" && useragent.New(rawUA).Bot()
}

func matches(rawUA string, sigs []string) bool {
	if rawUA == "" {
		return false
	}
	lower := strings.ToLower(rawUA)
	for _, sig := range sigs {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

type addrResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Classifier combines the user-agent signature check with an optional
// reverse-DNS signal: an address with no PTR record (or a PTR that is just
// the address itself) is treated as a bot hint. The lookup is bounded by
// Timeout and fails open, so a slow resolver can never stall a redirect.
type Classifier struct {
	CheckRDNS bool
	Timeout   time.Duration
	Resolver  addrResolver // defaults to net.DefaultResolver
}

func (c *Classifier) Classify(ctx context.Context, rawUA, ip string) bool {
	if IsCrawlerUA(rawUA) {
		return true
	}
	if !c.CheckRDNS || ip == "" {
		return false
	}
	return c.RDNSBot(ctx, ip)
}

// RDNSBot evaluates only the reverse-DNS signal for an address. Private and
// loopback addresses never trigger it.
func (c *Classifier) RDNSBot(ctx context.Context, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.IsLoopback() || addr.IsPrivate() || !addr.IsValid() {
		return false
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver := c.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	names, err := resolver.LookupAddr(ctx, ip)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			// No PTR record at all.
			return true
		}
		// Timeout or transient failure: fail open.
		return false
	}
	for _, name := range names {
		if strings.TrimSuffix(name, ".") == ip {
			return true
		}
	}
	return false
}
