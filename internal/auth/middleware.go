package auth

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *Authenticator) challenge(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
	c.Abort()
}

// RequireAdmin rejects the request unless admin credentials are presented.
// When no admin credentials are configured every request passes.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, err := a.Authorize(c.GetHeader("Authorization"))
		if err != nil {
			a.challenge(c)
			return
		}
		c.Set("username", username)
		c.Set("role", "admin")
		c.Next()
	}
}

// OptionalAdmin marks the request as admin when valid credentials are sent,
// and lets it through either way
func (a *Authenticator) OptionalAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, err := a.Authorize(c.GetHeader("Authorization")); err == nil {
			c.Set("username", username)
			c.Set("role", "admin")
		}
		c.Next()
	}
}

// HandleLogin exchanges Basic credentials for a bearer token
func (a *Authenticator) HandleLogin(c *gin.Context) {
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		a.challenge(c)
		return
	}
	if err := a.CheckBasic(username, password); err != nil {
		log.Printf("Rejected admin login for %q from %s", username, c.ClientIP())
		a.challenge(c)
		return
	}

	token, expiresAt, err := a.GenerateToken(username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"token":      token,
		"expires_at": float64(expiresAt.Unix()),
	})
}
