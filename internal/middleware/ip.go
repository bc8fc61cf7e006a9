package middleware

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// realIPKey holds the resolved source address on the gin context
const realIPKey = "real_ip"

// forwardingHeaders are consulted in order after X-Forwarded-For
var forwardingHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
}

// GetRealIP resolves the address an agent reported from. Behind a proxy the
// first public hop of X-Forwarded-For wins, then the single-address
// forwarding headers, then the TCP peer.
func GetRealIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		for _, hop := range strings.Split(xff, ",") {
			if addr, ok := parseAddr(hop); ok && isPublic(addr) {
				return addr.String()
			}
		}
	}

	for _, h := range forwardingHeaders {
		if addr, ok := parseAddr(c.GetHeader(h)); ok {
			return addr.String()
		}
	}

	return peerIP(c.Request.RemoteAddr)
}

// peerIP strips the port from a RemoteAddr; an unparsable value is returned as is
func peerIP(remote string) string {
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	if addr, ok := parseAddr(host); ok {
		return addr.String()
	}
	return host
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isPublic(addr netip.Addr) bool {
	return !(addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified())
}

// IPMiddleware resolves the source address once per request
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(realIPKey, GetRealIP(c))
		c.Next()
	}
}

// GetClientIP returns the address stored by IPMiddleware, resolving it when
// the middleware is not installed.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(realIPKey); ip != "" {
		return ip
	}
	return GetRealIP(c)
}
