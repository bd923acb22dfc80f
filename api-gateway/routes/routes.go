package routes

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/api-gateway/config"
	"github.com/yashrajoria/vm-marketplace/api-gateway/middlewares"
	"github.com/yashrajoria/vm-marketplace/api-gateway/utils"
)

// publicRoute matches requests that may be made without a token. Pattern
// segments follow path.Match, so "*" spans exactly one segment.
type publicRoute struct {
	method  string
	pattern string
}

var publicRoutes = []publicRoute{
	{http.MethodPost, "/auth/register"},
	{http.MethodPost, "/auth/login"},
	{http.MethodPost, "/auth/token"},
	{http.MethodPost, "/auth/refresh"},
	{http.MethodPost, "/auth/logout"},
	{http.MethodGet, "/vms"},
	{http.MethodGet, "/vms/*"},
	{http.MethodGet, "/vms/*/reviews"},
	{http.MethodGet, "/configurator/options"},
	{http.MethodPost, "/configurator/quote"},
	{http.MethodPost, "/providers/register"},
	{http.MethodPost, "/payments/webhook"},
	{http.MethodGet, "/bff/marketplace"},
	{http.MethodGet, "/bff/vms/*"},
}

// IsPublic reports whether method and p match a public route.
func IsPublic(method, p string) bool {
	p = strings.TrimSuffix(p, "/")
	for _, r := range publicRoutes {
		if r.method != method {
			continue
		}
		if ok, _ := path.Match(r.pattern, p); ok {
			return true
		}
	}
	return false
}

// prefixTable maps the first path segment to an upstream base URL.
func prefixTable(u config.Upstreams) map[string]string {
	return map[string]string{
		"auth":          u.Auth,
		"vms":           u.Catalog,
		"configurator":  u.Catalog,
		"providers":     u.Catalog,
		"cart":          u.Cart,
		"payments":      u.Payment,
		"orders":        u.Instance,
		"instances":     u.Instance,
		"notifications": u.Notification,
		"bff":           u.BFF,
	}
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// RegisterAllRoutes routes every request that is not served by the gateway
// itself to the upstream owning its prefix.
func RegisterAllRoutes(r *gin.Engine, authn *middlewares.Authenticator, fwd *utils.Forwarder, upstreams config.Upstreams) {
	table := prefixTable(upstreams)

	r.NoRoute(func(c *gin.Context) {
		target, ok := table[firstSegment(c.Request.URL.Path)]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		// Public routes still carry the identity of a signed-in caller.
		if err := authn.Authenticate(c); err != nil && !IsPublic(c.Request.Method, c.Request.URL.Path) {
			middlewares.Reject(c, err)
			return
		}
		fwd.Forward(c, target)
	})
}
