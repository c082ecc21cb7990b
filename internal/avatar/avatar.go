// Package avatar builds Gravatar image URLs. The browser fetches the image;
// nothing here talks to the network.
package avatar

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

const baseURL = "https://www.gravatar.com/avatar/"

type Options struct {
	Size    int    // pixels, 1..2048
	Default string // fallback image: "retro", "identicon", "mp", ...
	Rating  string // "g", "pg", "r" or "x"
}

var DefaultOptions = Options{Size: 100, Default: "retro", Rating: "g"}

// Hash is the Gravatar identifier for email.
func Hash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

func URL(email string, opts Options) string {
	q := url.Values{}
	if opts.Size > 0 {
		q.Set("s", strconv.Itoa(min(opts.Size, 2048)))
	}
	if opts.Default != "" {
		q.Set("d", opts.Default)
	}
	if opts.Rating != "" {
		q.Set("r", opts.Rating)
	}
	u := baseURL + Hash(email)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
