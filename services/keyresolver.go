package services

import (
	"fmt"
	"regexp"
	"strings"
)

// ObjectKeyPrefix is the fixed namespace product media lives under in the
// object store.
const ObjectKeyPrefix = "media/catalog/product/"

var (
	schemeHostRe = regexp.MustCompile(`(?i)^https?://[^/]+/`)
	s3BucketRe   = regexp.MustCompile(`(?i)^s3://[^/]+/`)
	multiSlashRe = regexp.MustCompile(`/+`)
)

// ToCanonical normalizes an arbitrary image reference (URL, s3:// URI, path
// with or without pub/media, media or catalog/product prefixes) down to the
// bare tail beneath catalog/product, e.g. "a/b/x.jpg". Empty input maps to
// empty output; the caller treats empty as "nothing to check".
func ToCanonical(input string) string {
	val := strings.TrimSpace(input)
	val = schemeHostRe.ReplaceAllString(val, "")
	val = s3BucketRe.ReplaceAllString(val, "")
	val = strings.TrimLeft(val, "/")

	if rest, ok := strings.CutPrefix(val, "pub/media/"); ok {
		val = rest
	} else if rest, ok := strings.CutPrefix(val, "media/"); ok {
		val = rest
	}
	if rest, ok := strings.CutPrefix(val, "catalog/product/"); ok {
		val = rest
	}

	val = multiSlashRe.ReplaceAllString(val, "/")
	return strings.TrimLeft(val, "/")
}

// CanonicalToObjectKey re-prefixes a canonical tail with the object-store
// namespace, always "media/catalog/product/<tail>".
func CanonicalToObjectKey(tail string) string {
	return ObjectKeyPrefix + strings.TrimLeft(tail, "/")
}

// ValidateCanonical rejects keys carrying path-traversal segments before any
// store lookup happens.
func ValidateCanonical(tail string) error {
	if tail == ".." || strings.HasPrefix(tail, "../") ||
		strings.HasSuffix(tail, "/..") || strings.Contains(tail, "/../") {
		return fmt.Errorf("path traversal in media key %q", tail)
	}
	return nil
}
