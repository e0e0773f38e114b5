package cloudinary

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// unsignedParams are sent with the request but excluded from the signature.
var unsignedParams = map[string]bool{
	"file":          true,
	"api_key":       true,
	"cloud_name":    true,
	"resource_type": true,
	"signature":     true,
}

// Sign computes the request signature: non-empty parameters sorted by name,
// joined as k=v with '&', followed by the API secret, SHA-1 hex encoded.
func Sign(params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if unsignedParams[k] || params.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(params[k], ","))
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
