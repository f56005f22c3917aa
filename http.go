package identity

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/penstand/go-identity/middleware/jwtware"
)

// RouteAuthenticator adapts an Authenticator to go-router handlers. Session
// tokens travel in an HTTP-only cookie named after the configured context
// key, or in the Authorization header for non-browser clients.
type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	validator        jwtware.TokenValidator
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		validator:      routeTokenValidator(auther, cfg),
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// routeTokenValidator prefers the authenticator's own token service so that
// middleware and login agree on signing key and audience.
func routeTokenValidator(auther Authenticator, cfg Config) jwtware.TokenValidator {
	if provider, ok := auther.(interface{ TokenService() TokenService }); ok {
		return sessionValidator{service: provider.TokenService()}
	}

	service := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		nil,
	)
	return sessionValidator{service: service}
}

// sessionValidator bridges TokenService to the middleware's validator
// interface without an import cycle.
type sessionValidator struct {
	service TokenService
}

func (v sessionValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute rejects requests without a valid session token
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.protected(cfg, errorHandler, "", "")
}

// RequireRole builds a middleware that additionally demands an exact role
func (a *RouteAuthenticator) RequireRole(cfg Config, errorHandler func(router.Context, error) error, role Role) router.MiddlewareFunc {
	return a.protected(cfg, errorHandler, string(role), "")
}

// RequireMinimumRole builds a middleware that demands at least the given
// role in the reader < author < admin hierarchy
func (a *RouteAuthenticator) RequireMinimumRole(cfg Config, errorHandler func(router.Context, error) error, minimum Role) router.MiddlewareFunc {
	return a.protected(cfg, errorHandler, "", string(minimum))
}

func (a *RouteAuthenticator) protected(cfg Config, errorHandler func(router.Context, error) error, requiredRole, minimumRole string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		middleware := jwtware.New(jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:     cfg.GetAuthScheme(),
			ContextKey:     cfg.GetContextKey(),
			TokenLookup:    cfg.GetTokenLookup(),
			TokenValidator: a.validator,
			RequiredRole:   requiredRole,
			MinimumRole:    minimumRole,
		})
		return middleware(hf)
	}
}

func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// SetSessionCookie stores an already minted token, e.g. the one returned by
// account verification, in the session cookie.
func (a *RouteAuthenticator) SetSessionCookie(ctx router.Context, token string) {
	a.setCookieToken(ctx, token, a.cookieDuration)
}

// MakeClientRouteAuthErrorHandler builds the error handler protected routes
// use. With optional set, requests with broken tokens proceed anonymously.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if jwtware.IsAccessDenied(err) {
			richErr = ErrForbidden
		} else if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	code := richErr.Code
	if code == 0 {
		code = router.StatusUnauthorized
	}

	return c.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		code := richErr.Code
		if code == 0 {
			code = router.StatusInternalServerError
		}
		return c.JSON(code, map[string]any{
			"error":     richErr.Message,
			"text_code": richErr.TextCode,
		})
	}
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)
