package gate

import "net/http"

// responseBuilder accumulates cookie and header writes made during the gate's
// decision and applies them to the response exactly once. This keeps cookie
// mutation decoupled from response construction: the gate never needs to
// rebuild a response object mid-flight to carry its writes forward.
type responseBuilder struct {
	cookies []*http.Cookie
	headers http.Header
}

func newResponseBuilder() *responseBuilder {
	return &responseBuilder{headers: make(http.Header)}
}

func (b *responseBuilder) setCookie(c *http.Cookie) {
	b.cookies = append(b.cookies, c)
}

func (b *responseBuilder) deleteCookies(codec *cookieCodec, names ...string) {
	for _, name := range names {
		b.cookies = append(b.cookies, codec.expiredCookie(name))
	}
}

func (b *responseBuilder) setHeader(key, value string) {
	b.headers.Set(key, value)
}

// apply flushes all accumulated writes onto the response. Must be called
// before the downstream handler writes the response body.
func (b *responseBuilder) apply(w http.ResponseWriter) {
	for _, c := range b.cookies {
		http.SetCookie(w, c)
	}
	for key, values := range b.headers {
		for _, v := range values {
			w.Header().Set(key, v)
		}
	}
}
