package handlers

import "net/url"

// mergeQuery adds params onto dest's query string. Same-named parameters on
// dest are overridden; everything else on dest is preserved as-is.
func mergeQuery(dest string, params url.Values) string {
	if len(params) == 0 {
		return dest
	}
	u, err := url.Parse(dest)
	if err != nil {
		return dest
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String()
}
