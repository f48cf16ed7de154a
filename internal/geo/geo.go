package geo

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

type Result struct {
	Country string
	City    string
}

// Source resolves an IP to coarse location data. Lookups are best-effort:
// any failure yields a zero Result, never an error.
type Source interface {
	Lookup(ip string) Result
	Close()
}

// Reader is a Source backed by a local MaxMind .mmdb file.
type Reader struct {
	db *maxminddb.Reader
}

// Open opens a MaxMind .mmdb file. Returns a no-op Reader if path is empty.
func Open(path string) (*Reader, error) {
	if path == "" {
		return &Reader{}, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() {
	if r != nil && r.db != nil {
		r.db.Close()
	}
}

func (r *Reader) Lookup(ipStr string) Result {
	if r == nil || r.db == nil {
		return Result{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Result{}
	}

	var record struct {
		Country struct {
			ISOCode string            `maxminddb:"iso_code"`
			Names   map[string]string `maxminddb:"names"`
		} `maxminddb:"country"`
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
	}

	if err := r.db.Lookup(ip, &record); err != nil {
		return Result{}
	}

	country := record.Country.Names["en"]
	if country == "" {
		country = record.Country.ISOCode
	}
	return Result{
		Country: country,
		City:    record.City.Names["en"],
	}
}

// APIClient is a Source backed by an ip-api style JSON endpoint
// (GET <base>/<ip>?fields=status,country,city). The request is bounded by
// the client timeout and fails open.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) Close() {}

func (c *APIClient) Lookup(ip string) Result {
	if c == nil || c.baseURL == "" || net.ParseIP(ip) == nil {
		return Result{}
	}

	resp, err := c.client.Get(fmt.Sprintf("%s/%s?fields=status,country,city", c.baseURL, url.PathEscape(ip)))
	if err != nil {
		return Result{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}
	}

	var data struct {
		Status  string `json:"status"`
		Country string `json:"country"`
		City    string `json:"city"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Result{}
	}
	if data.Status != "success" {
		return Result{}
	}
	return Result{Country: data.Country, City: data.City}
}
