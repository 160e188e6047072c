// Package grpc holds client helpers shared by the gRPC transports.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// HeaderInterceptor appends the key value pair to the outgoing metadata of every unary call.
// Hosted guardian RPC endpoints read API keys from such a header.
func HeaderInterceptor(key, value string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(
			metadata.AppendToOutgoingContext(ctx, key, value),
			method, req, reply, cc, opts...,
		)
	}
}

// BearerInterceptor sets the authorization header to "Bearer <token>".
func BearerInterceptor(token string) grpc.UnaryClientInterceptor {
	return HeaderInterceptor("authorization", "Bearer "+token)
}
