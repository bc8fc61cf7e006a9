package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// tokenBytes yields a 40 character hex token
const tokenBytes = 20

// GenerateNodeToken returns a random token for samplers.
func GenerateNodeToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type remoteAddrKey struct{}

// WithRemoteAddr attaches the caller address recorded on audit events.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

func remoteAddrFrom(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}
