package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests.
	// An empty list or the single entry "*" allows all origins.
	AllowOrigins []string

	// AllowMethods lists the HTTP methods clients may use in actual
	// requests. Defaults to "GET, POST, PUT, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send. When empty,
	// the middleware echoes back Access-Control-Request-Headers from the
	// preflight request.
	AllowHeaders []string

	// ExposeHeaders lists response headers the browser may read.
	ExposeHeaders []string

	// AllowCredentials permits credentialed requests. The wildcard origin
	// must not be combined with credentials; the middleware then echoes the
	// specific origin instead.
	AllowCredentials bool

	// MaxAge is how long (seconds) preflight results may be cached. Zero
	// omits the header; a negative value sends "0".
	MaxAge int
}

// cors holds the precomputed header values shared by all requests.
type cors struct {
	allowAll    bool
	origins     map[string]string // lowercase -> original case
	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing:
// case-insensitive origin matching with original-case echo-back, Vary
// headers to keep shared caches correct, and preflight detection via the
// Access-Control-Request-Method header.
func CORS(cfg CORSConfig) Middleware {
	c := &cors{
		allowAll:    len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.allowAll = true
			break
		}
		c.origins[strings.ToLower(o)] = o
	}
	// Credentials with a wildcard origin is forbidden by the fetch spec;
	// fall back to echoing the specific origin.
	if c.credentials && c.allowAll {
		c.allowAll = false
	}
	if c.methods == "" {
		c.methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		c.maxAge = "0"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin request: outside CORS scope, but still vary on
			// Origin so caches keep responses separated.
			if origin == "" {
				if !c.allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				c.preflight(w, r, origin)
				return
			}

			c.actual(w, origin)
			next.ServeHTTP(w, r)
		})
	}
}

// preflight answers an OPTIONS preflight request with 204 and, when the
// origin is allowed, the negotiated CORS headers.
func (c *cors) preflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	allowOrigin := c.resolveOrigin(origin)
	if allowOrigin == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Set("Access-Control-Allow-Origin", allowOrigin)
	h.Set("Access-Control-Allow-Methods", c.methods)

	if c.headers != "" {
		h.Set("Access-Control-Allow-Headers", c.headers)
	} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
		h.Set("Access-Control-Allow-Headers", rh)
	}

	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.maxAge != "" {
		h.Set("Access-Control-Max-Age", c.maxAge)
	}

	w.WriteHeader(http.StatusNoContent)
}

// actual adds CORS headers to a simple or actual cross-origin request.
func (c *cors) actual(w http.ResponseWriter, origin string) {
	h := w.Header()
	if !c.allowAll {
		h.Add("Vary", "Origin")
	}

	allowOrigin := c.resolveOrigin(origin)
	if allowOrigin == "" {
		return
	}

	h.Set("Access-Control-Allow-Origin", allowOrigin)
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.expose != "" {
		h.Set("Access-Control-Expose-Headers", c.expose)
	}
}

// resolveOrigin returns the Access-Control-Allow-Origin value for the given
// request origin, or "" when the origin is not allowed.
func (c *cors) resolveOrigin(origin string) string {
	if c.allowAll {
		return "*"
	}
	if orig, ok := c.origins[strings.ToLower(origin)]; ok {
		return orig
	}
	return ""
}
