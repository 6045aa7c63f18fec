package logging

import "strings"

// RedactToken keeps the first eight characters of a secret, enough to tell
// a live Stripe key from a test one, and drops the rest.
func RedactToken(t string) string {
	switch {
	case t == "":
		return "[empty]"
	case len(t) <= 8:
		return t[:1] + "..."
	}
	return t[:8] + "..."
}

// RedactEmail hides the local part of an address and keeps the domain.
func RedactEmail(e string) string {
	if e == "" {
		return "[empty]"
	}
	local, domain, ok := strings.Cut(e, "@")
	if !ok {
		if len(local) > 1 {
			return local[:1] + "..."
		}
		return "..."
	}
	if local == "" {
		return "...@" + domain
	}
	return local[:1] + "...@" + domain
}
