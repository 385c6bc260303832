// Package pesapal talks to the Pesapal-style payment gateway. Every request
// carries an OAuth 1.0a HMAC-SHA1 signature computed over the method, URL
// and full parameter set; the signing itself is a pure function so it can be
// tested against fixed vectors independent of any HTTP plumbing.
package pesapal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	oauthSignatureMethod = "HMAC-SHA1"
	oauthVersion         = "1.0"
)

type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
}

// SignatureInput is everything the signature depends on. Nonce and Timestamp
// are injected so the function stays deterministic under test; production
// callers use Nonce() and a Unix-seconds clock.
type SignatureInput struct {
	Method    string
	URL       string
	Params    map[string]string
	Nonce     string
	Timestamp string
}

// Sign produces the base64 HMAC-SHA1 signature for the request.
func Sign(in SignatureInput, creds Credentials) string {
	params := protocolParams(in, creds)
	base := baseString(in.Method, in.URL, params)

	key := percentEncode(creds.ConsumerSecret) + "&"
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignedParams returns the business parameters merged with the oauth_*
// protocol parameters and the computed signature, ready to be sent.
func SignedParams(in SignatureInput, creds Credentials) url.Values {
	params := protocolParams(in, creds)
	signature := Sign(in, creds)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("oauth_signature", signature)
	return values
}

// Nonce returns a single-use random token. A nonce must never be reused
// across two requests.
func Nonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

func protocolParams(in SignatureInput, creds Credentials) map[string]string {
	params := make(map[string]string, len(in.Params)+5)
	for k, v := range in.Params {
		params[k] = v
	}
	params["oauth_consumer_key"] = creds.ConsumerKey
	params["oauth_nonce"] = in.Nonce
	params["oauth_signature_method"] = oauthSignatureMethod
	params["oauth_timestamp"] = in.Timestamp
	params["oauth_version"] = oauthVersion
	return params
}

// baseString builds UPPER(method) & enc(url) & enc(sorted params) with every
// key and value percent-encoded and pairs sorted by encoded key.
func baseString(method, requestURL string, params map[string]string) string {
	encoded := make([][2]string, 0, len(params))
	for k, v := range params {
		encoded = append(encoded, [2]string{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(encoded, func(i, j int) bool {
		return encoded[i][0] < encoded[j][0]
	})

	pairs := make([]string, 0, len(encoded))
	for _, kv := range encoded {
		pairs = append(pairs, kv[0]+"="+kv[1])
	}
	paramString := strings.Join(pairs, "&")

	return strings.ToUpper(method) + "&" + percentEncode(requestURL) + "&" + percentEncode(paramString)
}

// percentEncode is the RFC 3986 encoding OAuth requires: unreserved
// characters pass through, everything else becomes uppercase %XX.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}
