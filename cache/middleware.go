package cache

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const jsonContentType = "application/json; charset=utf-8"

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware serves GET requests for a single post view from the cache and
// stores successful responses. It must be mounted on a route with an :id param.
// Failed cache writes are logged and the response is served as usual.
func (c *ViewCache) Middleware(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !c.Enabled() || ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}

		postID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
		if err != nil || postID == 0 {
			ctx.Next()
			return
		}

		if cached, found := c.Read(uint(postID)); found {
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, jsonContentType, cached)
			ctx.Abort()
			return
		}

		ctx.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: ctx.Writer,
			body:           bytes.NewBuffer(nil),
		}
		ctx.Writer = writer

		ctx.Next()

		if ctx.Writer.Status() == http.StatusOK &&
			ctx.Writer.Header().Get("Content-Type") == jsonContentType {
			if err := c.Write(uint(postID), writer.body.Bytes()); err != nil {
				log.Warn("cache post view", "post_id", postID, "error", err)
			}
		}
	}
}
