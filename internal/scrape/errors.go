package scrape

import "fmt"

// AuthError marks a failed login or session handshake. It is fatal for the
// scraper that raised it, and only for that scraper.
type AuthError struct {
	Platform string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Platform, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError marks a network or HTTP failure for one page or item.
type FetchError struct {
	Platform string
	URL      string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Platform, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError marks a malformed platform record. The record is skipped; the
// page continues.
type ParseError struct {
	Platform string
	ID       string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse record %s: %v", e.Platform, e.ID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
