package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// cachedPage is one stored GET response.
type cachedPage struct {
	status int
	header http.Header
	body   []byte
}

// recordingWriter tees the response body into a buffer.
type recordingWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cacheKey ignores query parameter order so ?a=1&b=2 and ?b=2&a=1 share
// an entry.
func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.Query().Encode()
}

// Cache serves repeated GET requests from store for ttl. Only 2xx answers
// are kept. Responses say X-Cache: HIT or MISS, and a request sent with
// Cache-Control: no-cache always reaches the handler.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cacheKey(c.Request)
		bypass := c.GetHeader("Cache-Control") == "no-cache"
		if v, ok := store.Get(key); ok && !bypass {
			page := v.(cachedPage)
			h := c.Writer.Header()
			for name, values := range page.header {
				h[name] = values
			}
			h.Set("X-Cache", "HIT")
			c.Writer.WriteHeader(page.status)
			_, _ = c.Writer.Write(page.body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		rw := &recordingWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rw
		c.Next()

		status := rw.Status()
		if status < 200 || status >= 300 {
			return
		}
		header := rw.Header().Clone()
		header.Del("X-Cache")
		store.Set(key, cachedPage{
			status: status,
			header: header,
			body:   bytes.Clone(rw.buf.Bytes()),
		}, ttl)
	}
}
