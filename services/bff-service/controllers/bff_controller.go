package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yashrajoria/vm-marketplace/services/bff-service/cache"
	"github.com/yashrajoria/vm-marketplace/services/bff-service/clients"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

const (
	featuredCacheKey = "bff:featured"
	reviewsPageSize  = 10
)

// Gateway is satisfied by *clients.GatewayClient.
type Gateway interface {
	Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) (*http.Response, error)
	GetJSON(ctx context.Context, path string, query url.Values, headers http.Header) (json.RawMessage, error)
}

type BFFController struct {
	gateway       Gateway
	cache         cache.Cache
	featuredLimit int
	logger        *zap.Logger
}

func NewBFFController(gateway Gateway, c cache.Cache, featuredLimit int, logger *zap.Logger) *BFFController {
	if c == nil {
		c = cache.Nop{}
	}
	if featuredLimit <= 0 {
		featuredLimit = 6
	}
	return &BFFController{gateway: gateway, cache: c, featuredLimit: featuredLimit, logger: logger}
}

// section is one gateway call a page is built from.
type section struct {
	name     string
	path     string
	query    url.Values
	cacheKey string
}

// page collects section results. A failed section is null in Data and its
// reason is listed in Errors.
type page struct {
	mu     sync.Mutex
	Data   map[string]json.RawMessage
	Errors map[string]string
	status map[string]int
}

func (p *page) set(name string, data json.RawMessage, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.Data[name] = data
		return
	}
	p.Data[name] = nil
	var upstream *clients.UpstreamError
	if errors.As(err, &upstream) {
		p.Errors[name] = upstream.Message()
		p.status[name] = upstream.Status
		return
	}
	p.Errors[name] = "service unavailable"
	p.status[name] = http.StatusBadGateway
}

func (p *page) body() gin.H {
	out := gin.H{}
	for k, v := range p.Data {
		out[k] = v
	}
	if len(p.Errors) > 0 {
		out["errors"] = p.Errors
	}
	out["timestamp"] = time.Now().UTC()
	return out
}

// fetch calls every section concurrently with the caller's headers.
func (b *BFFController) fetch(c *gin.Context, sections []section) *page {
	p := &page{
		Data:   make(map[string]json.RawMessage, len(sections)),
		Errors: map[string]string{},
		status: map[string]int{},
	}
	ctx := c.Request.Context()
	headers := c.Request.Header.Clone()

	var g errgroup.Group
	for _, s := range sections {
		g.Go(func() error {
			if s.cacheKey != "" {
				if cached, ok := b.cache.Get(ctx, s.cacheKey); ok {
					p.set(s.name, cached, nil)
					return nil
				}
			}
			data, err := b.gateway.GetJSON(ctx, s.path, s.query, headers)
			if err != nil {
				b.logger.Warn("section failed",
					zap.String("section", s.name),
					zap.String("path", s.path),
					zap.Error(err),
				)
			} else if s.cacheKey != "" {
				b.cache.Set(ctx, s.cacheKey, data)
			}
			p.set(s.name, data, err)
			return nil
		})
	}
	_ = g.Wait()
	return p
}

func authenticated(c *gin.Context) bool {
	return c.GetHeader(middleware.HeaderUserID) != ""
}

// Marketplace returns featured listings and, for signed-in users, the cart.
func (b *BFFController) Marketplace(c *gin.Context) {
	sections := []section{{
		name:     "featured",
		path:     "/vms",
		query:    url.Values{"sort": {"featured"}, "limit": {strconv.Itoa(b.featuredLimit)}},
		cacheKey: featuredCacheKey,
	}}
	if authenticated(c) {
		sections = append(sections, section{name: "cart", path: "/cart"})
	}

	p := b.fetch(c, sections)
	if _, ok := p.Data["cart"]; !ok {
		p.Data["cart"] = nil
	}
	if len(p.Errors) == len(sections) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load marketplace", "errors": p.Errors})
		return
	}
	c.JSON(http.StatusOK, p.body())
}

// Dashboard returns instances, recent orders and saved payment methods.
func (b *BFFController) Dashboard(c *gin.Context) {
	sections := []section{
		{name: "instances", path: "/instances", query: passQuery(c, "status")},
		{name: "orders", path: "/orders", query: url.Values{"page": {"1"}, "limit": {"5"}}},
		{name: "payment_methods", path: "/payments/methods"},
	}

	p := b.fetch(c, sections)
	if len(p.Errors) == len(sections) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load dashboard", "errors": p.Errors})
		return
	}
	c.JSON(http.StatusOK, p.body())
}

// VMDetail returns the listing with its first page of reviews. A missing
// listing is reported with the catalog's own status.
func (b *BFFController) VMDetail(c *gin.Context) {
	id := url.PathEscape(c.Param("id"))
	p := b.fetch(c, []section{
		{name: "vm", path: "/vms/" + id},
		{name: "reviews", path: "/vms/" + id + "/reviews", query: url.Values{"skip": {"0"}, "limit": {strconv.Itoa(reviewsPageSize)}}},
	})

	if msg, failed := p.Errors["vm"]; failed {
		status := p.status["vm"]
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, p.body())
}

func passQuery(c *gin.Context, keys ...string) url.Values {
	q := url.Values{}
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			q.Set(k, v)
		}
	}
	return q
}

// Proxy forwards any other /bff request to the gateway with the /bff prefix
// removed.
func (b *BFFController) Proxy(c *gin.Context) {
	path := c.Request.URL.Path
	if path != "/bff" && !strings.HasPrefix(path, "/bff/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	target := strings.TrimPrefix(path, "/bff")
	if target == "" {
		target = "/"
	}

	resp, err := b.gateway.Do(c.Request.Context(), c.Request.Method, target, c.Request.URL.Query(), c.Request.Header, c.Request.Body)
	if err != nil {
		b.logger.Warn("proxy request failed", zap.String("path", target), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
		return
	}

	if err := clients.CopyResponse(c.Writer, resp); err != nil {
		b.logger.Warn("proxy response copy failed", zap.String("path", target), zap.Error(err))
	}
}
