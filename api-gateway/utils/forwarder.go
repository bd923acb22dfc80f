package utils

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

var hopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// Forwarder relays requests to upstream services unchanged apart from the
// identity headers it injects.
type Forwarder struct {
	client *http.Client
	logger *zap.Logger
}

func NewForwarder(timeout time.Duration, logger *zap.Logger) *Forwarder {
	return &Forwarder{client: &http.Client{Timeout: timeout}, logger: logger}
}

// Forward sends the request to targetBase with the same path and query.
func (f *Forwarder) Forward(c *gin.Context, targetBase string) {
	targetURL := targetBase + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, c.Request.Body)
	if err != nil {
		f.logger.Error("failed to create forward request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create request"})
		return
	}
	req.ContentLength = c.Request.ContentLength

	for k, v := range c.Request.Header {
		if hopHeaders[strings.ToLower(k)] {
			continue
		}
		req.Header[k] = v
	}

	// Identity headers for downstream services.
	if uid := c.GetString(middleware.ContextUserID); uid != "" {
		req.Header.Set(middleware.HeaderUserID, uid)
		req.Header.Set(middleware.HeaderUserEmail, c.GetString(middleware.ContextEmail))
		req.Header.Set(middleware.HeaderUserRole, c.GetString(middleware.ContextRole))
	}
	if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
		req.Header.Set("X-Forwarded-For", prior+", "+c.ClientIP())
	} else {
		req.Header.Set("X-Forwarded-For", c.ClientIP())
	}

	f.logger.Debug("forwarding request",
		zap.String("method", c.Request.Method),
		zap.String("url", targetURL),
	)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("failed to forward request", zap.String("url", targetURL), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "service unreachable"})
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		lowerKey := strings.ToLower(k)
		// CORS is answered by the gateway itself.
		if strings.HasPrefix(lowerKey, "access-control-") || hopHeaders[lowerKey] {
			continue
		}
		c.Writer.Header()[k] = v
	}

	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		f.logger.Warn("failed to copy response body", zap.Error(err))
	}
}
