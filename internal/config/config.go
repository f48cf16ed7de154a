package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port    string
	DBPath  string
	APIKey  string
	BaseURL string

	// SiteHost is the host of the publishing site, used to decide whether a
	// referer is same-site for PLP inference on /go.
	SiteHost string

	// AllowedDomains is the static allow-list of outbound destination hosts.
	AllowedDomains []string

	// Geo lookups: a local MaxMind database takes precedence; otherwise an
	// ip-api style JSON endpoint is queried with GeoTimeout.
	GeoIPPath  string
	GeoAPIURL  string
	GeoTimeout time.Duration

	// Reverse-DNS bot signal, independently switchable per path.
	RDNSGo      bool
	RDNSSplit   bool
	RDNSTimeout time.Duration

	FlushInterval time.Duration
	BufferSize    int
	CacheSize     int
}

func Load() (*Config, error) {
	apiKey := os.Getenv("GOTRACKER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOTRACKER_API_KEY is required")
	}

	domainsRaw := os.Getenv("GOTRACKER_ALLOWED_DOMAINS")
	if domainsRaw == "" {
		return nil, fmt.Errorf("GOTRACKER_ALLOWED_DOMAINS is required")
	}
	var domains []string
	for _, d := range strings.Split(domainsRaw, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, strings.ToLower(d))
		}
	}

	cfg := &Config{
		Port:           envOrDefault("GOTRACKER_PORT", "8080"),
		DBPath:         envOrDefault("GOTRACKER_DB_PATH", "./gotracker.db"),
		APIKey:         apiKey,
		BaseURL:        strings.TrimRight(envOrDefault("GOTRACKER_BASE_URL", "http://localhost:8080"), "/"),
		SiteHost:       strings.ToLower(os.Getenv("GOTRACKER_SITE_HOST")),
		AllowedDomains: domains,
		GeoIPPath:      os.Getenv("GOTRACKER_GEOIP_PATH"),
		GeoAPIURL:      os.Getenv("GOTRACKER_GEO_API_URL"),
		GeoTimeout:     parseDuration("GOTRACKER_GEO_TIMEOUT", 2*time.Second),
		RDNSGo:         parseBool("GOTRACKER_RDNS_GO", false),
		RDNSSplit:      parseBool("GOTRACKER_RDNS_SPLIT", true),
		RDNSTimeout:    parseDuration("GOTRACKER_RDNS_TIMEOUT", 500*time.Millisecond),
		FlushInterval:  parseDuration("GOTRACKER_FLUSH_INTERVAL", 10*time.Second),
		BufferSize:     parseInt("GOTRACKER_BUFFER_SIZE", 50000),
		CacheSize:      parseInt("GOTRACKER_CACHE_SIZE", 1000),
	}

	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("GOTRACKER_FLUSH_INTERVAL must be positive")
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("GOTRACKER_BUFFER_SIZE must be positive")
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("GOTRACKER_CACHE_SIZE must be positive")
	}
	if cfg.GeoTimeout <= 0 {
		return nil, fmt.Errorf("GOTRACKER_GEO_TIMEOUT must be positive")
	}

	return cfg, nil
}

// IsDomainAllowed reports whether host is on the outbound destination allow-list.
func (c *Config) IsDomainAllowed(host string) bool {
	for _, d := range c.AllowedDomains {
		if strings.EqualFold(d, host) {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
