package main

import "net/url"

// redactURL hides the password of a connection URL before it is logged.
// Values that do not parse as URLs (SQLite paths) are returned unchanged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
