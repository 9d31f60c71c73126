package client

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Signer authenticates an outgoing request.
type Signer interface {
	Sign(req *http.Request) error
}

// OAuth1 signs requests with OAuth 1.0a HMAC-SHA1. Token and TokenSecret are
// empty for two-legged (consumer only) access.
type OAuth1 struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string

	// Now and Nonce are fixed in tests.
	Now   func() time.Time
	Nonce func() string
}

func NewOAuth1(key, secret string) *OAuth1 {
	return &OAuth1{ConsumerKey: key, ConsumerSecret: secret}
}

func (o *OAuth1) Sign(req *http.Request) error {
	oauth := map[string]string{
		"oauth_consumer_key":     o.ConsumerKey,
		"oauth_nonce":            o.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(o.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if o.Token != "" {
		oauth["oauth_token"] = o.Token
	}

	params, err := requestParams(req)
	if err != nil {
		return fmt.Errorf("oauth: %w", err)
	}
	for k, v := range oauth {
		params = append(params, param{k, v})
	}
	sig := o.signature(req.Method, baseURL(req.URL), params)
	oauth["oauth_signature"] = sig

	names := make([]string, 0, len(oauth))
	for k := range oauth {
		names = append(names, k)
	}
	slices.Sort(names)
	var b strings.Builder
	b.WriteString("OAuth ")
	for i, k := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, `%s="%s"`, percentEncode(k), percentEncode(oauth[k]))
	}
	req.Header.Set("Authorization", b.String())
	return nil
}

type param struct{ k, v string }

// signature computes the base64 HMAC-SHA1 over the signature base string.
func (o *OAuth1) signature(method, base string, params []param) string {
	enc := make([]param, len(params))
	for i, p := range params {
		enc[i] = param{percentEncode(p.k), percentEncode(p.v)}
	}
	slices.SortFunc(enc, func(a, b param) int {
		if c := strings.Compare(a.k, b.k); c != 0 {
			return c
		}
		return strings.Compare(a.v, b.v)
	})
	pairs := make([]string, len(enc))
	for i, p := range enc {
		pairs[i] = p.k + "=" + p.v
	}
	baseString := strings.ToUpper(method) + "&" + percentEncode(base) + "&" + percentEncode(strings.Join(pairs, "&"))

	key := percentEncode(o.ConsumerSecret) + "&" + percentEncode(o.TokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (o *OAuth1) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *OAuth1) nonce() string {
	if o.Nonce != nil {
		return o.Nonce()
	}
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// requestParams collects the query parameters and, for form bodies, the
// body parameters. The body is restored for sending.
func requestParams(req *http.Request) ([]param, error) {
	var out []param
	for k, vs := range req.URL.Query() {
		for _, v := range vs {
			out = append(out, param{k, v})
		}
	}
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	mt, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mt != "application/x-www-form-urlencoded" {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("form body of %s %s cannot be re-read", req.Method, req.URL)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read form body: %w", err)
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse form body: %w", err)
	}
	for k, vs := range form {
		for _, v := range vs {
			out = append(out, param{k, v})
		}
	}
	return out, nil
}

// baseURL is scheme://host/path with default ports dropped and no query.
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if h, port, ok := strings.Cut(host, ":"); ok {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
		}
	}
	return scheme + "://" + host + u.EscapedPath()
}

// percentEncode escapes everything but the RFC 3986 unreserved set.
func percentEncode(s string) string {
	const hexUpper = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexUpper[c>>4])
		b.WriteByte(hexUpper[c&15])
	}
	return b.String()
}
