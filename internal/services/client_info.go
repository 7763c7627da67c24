package services

import "context"

type clientInfoKey struct{}

// ClientInfo is the best-effort request context attached to audit entries
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo returns a context carrying info
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFrom returns the client info in ctx, or the zero value
func ClientInfoFrom(ctx context.Context) ClientInfo {
	if info, ok := ctx.Value(clientInfoKey{}).(ClientInfo); ok {
		return info
	}
	return ClientInfo{}
}
