package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/pitabwire/modeltranslation/localization"
)

// LanguageUnaryInterceptor activates the language negotiated from the accept-language metadata.
func LanguageUnaryInterceptor(resolver *localization.Resolver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, _ = resolver.Negotiate(ctx, localization.ExtractLanguageFromGrpcRequest(ctx))
		return handler(ctx, req)
	}
}

// LanguageStreamInterceptor is the streaming counterpart of LanguageUnaryInterceptor.
func LanguageStreamInterceptor(resolver *localization.Resolver) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, _ := resolver.Negotiate(ss.Context(), localization.ExtractLanguageFromGrpcRequest(ss.Context()))
		return handler(srv, &languageStream{ServerStream: ss, ctx: ctx})
	}
}

type languageStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *languageStream) Context() context.Context {
	return s.ctx
}
