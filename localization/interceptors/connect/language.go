package connect

import (
	"context"

	"connectrpc.com/connect"

	"github.com/pitabwire/modeltranslation/localization"
)

const headerContentLanguage = "Content-Language"

// LanguageInterceptor activates the language negotiated from the Accept-Language header of
// handled calls. Unary responses carry it back in Content-Language.
type LanguageInterceptor struct {
	resolver *localization.Resolver
}

func NewLanguageInterceptor(resolver *localization.Resolver) *LanguageInterceptor {
	return &LanguageInterceptor{resolver: resolver}
}

func (l *LanguageInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}

		ctx, lang := l.resolver.Negotiate(ctx, localization.ExtractLanguageFromHTTPHeader(req.Header()))
		resp, err := next(ctx, req)
		if err == nil && resp != nil {
			resp.Header().Set(headerContentLanguage, lang)
		}
		return resp, err
	}
}

func (l *LanguageInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (l *LanguageInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, lang := l.resolver.Negotiate(ctx, localization.ExtractLanguageFromHTTPHeader(conn.RequestHeader()))
		conn.ResponseHeader().Set(headerContentLanguage, lang)
		return next(ctx, conn)
	}
}
