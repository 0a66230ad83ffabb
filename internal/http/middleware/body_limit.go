package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deskmate/deskmate-backend/internal/http/response"
)

// MaxBody rejects requests whose declared Content-Length exceeds the limit
// and caps the body reader for requests without one. Handlers see a
// *http.MaxBytesError from binding when the cap is hit mid-read.
func MaxBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Errorf("request body exceeds %d bytes", limit))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
