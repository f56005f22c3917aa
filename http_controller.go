package identity

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/penstand/go-identity/middleware/ratelimit"
)

// SensitiveRouteMax and SensitiveRouteWindow bound how often a single client
// can hit the credential and challenge endpoints.
const (
	SensitiveRouteMax    = 5
	SensitiveRouteWindow = 15 * time.Minute
)

// GetRouterSession builds a SessionObject from the claims the access-control
// middleware stored in the router context.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	if key == "" {
		key = "user"
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	claims, ok := raw.(AuthClaims)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}

	return sessionFromAuthClaims(claims)
}

// RegisterAuthRoutes wires the JSON auth endpoints into the given router.
// Credential and challenge routes sit behind the sensitive-class rate
// limiter so code guessing and password spraying are throttled before any
// other component runs.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.
		Post(controller.Routes.Register, controller.limited(controller.RegistrationCreate)).
		SetName("auth.register.post")

	app.
		Post(controller.Routes.Verify, controller.limited(controller.VerifyPost)).
		SetName("auth.verify.post")

	app.
		Post(controller.Routes.Resend, controller.limited(controller.ResendPost)).
		SetName("auth.resend.post")

	app.
		Post(controller.Routes.Login, controller.limited(controller.LoginPost)).
		SetName("auth.login.post")

	app.
		Post(controller.Routes.Logout, controller.LogOut).
		SetName("auth.logout.post")
}

type AuthControllerRoutes struct {
	Register string
	Verify   string
	Resend   string
	Login    string
	Logout   string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Auth         Authenticator
	Auther       HTTPAuthenticator
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
	RateLimiter  router.MiddlewareFunc

	rateLimiterSet bool
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerAuthenticator(auth Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auth = auth
		return c
	}
}

func WithControllerHTTPAuthenticator(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// WithControllerRateLimiter replaces the default sensitive-route limiter.
// Pass nil to disable limiting, e.g. in tests.
func WithControllerRateLimiter(limiter router.MiddlewareFunc) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.RateLimiter = limiter
		c.rateLimiterSet = true
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register: "/auth/register",
			Verify:   "/auth/verify",
			Resend:   "/auth/resend",
			Login:    "/auth/login",
			Logout:   "/auth/logout",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.respondError
	}

	if c.RateLimiter == nil && !c.rateLimiterSet {
		c.RateLimiter = ratelimit.New(ratelimit.Config{
			Max:    SensitiveRouteMax,
			Window: SensitiveRouteWindow,
		})
	}

	return c
}

func (a *AuthController) limited(handler router.HandlerFunc) router.HandlerFunc {
	if a.RateLimiter == nil {
		return handler
	}
	return a.RateLimiter(handler)
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Phone    string `form:"phone_number" json:"phone_number"`
	Password string `form:"password" json:"password"`
	Role     string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&r.Role, validation.In(selfAssignableRoleValues()...)),
	)
}

func selfAssignableRoleValues() []any {
	roles := SelfAssignableRoles()
	values := make([]any, 0, len(roles))
	for _, role := range roles {
		values = append(values, string(role))
	}
	return values
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register validate payload", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "Validation failed",
			"text_code":  "VALIDATION",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("register payload", "payload", print.MaybePrettyJSON(payload))
	}

	msg := RegisterAccountMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
		Role:     Role(payload.Role),
	}

	user, err := a.Auth.Register(ctx.Context(), msg)
	if err != nil {
		a.Logger.Error("register account", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"message": "Verification code sent",
		"profile": user.PublicProfile(),
	})
}

// VerifyRequest carries the email plus the submitted one-time code
type VerifyRequest struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// Validate will run validation rules
func (r VerifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(CodeDigits, CodeDigits), is.Digit),
	)
}

func (a *AuthController) VerifyPost(ctx router.Context) error {
	payload := new(VerifyRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("verify parse payload", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "Validation failed",
			"text_code":  "VALIDATION",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	verified, err := a.Auth.VerifyAccount(ctx.Context(), payload.Email, payload.Code)
	if err != nil {
		a.Logger.Error("verify account", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.setSessionCookie(ctx, verified.Token)

	return ctx.JSON(router.StatusOK, map[string]any{
		"token":   verified.Token,
		"profile": verified.Profile,
	})
}

// ResendRequest asks for a fresh verification code
type ResendRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ResendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendPost(ctx router.Context) error {
	payload := new(ResendRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("resend parse payload", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "Validation failed",
			"text_code":  "VALIDATION",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	err := a.Auth.ResendCode(ctx.Context(), payload.Email)
	switch {
	case err == nil:
	case errors.Is(err, ErrIdentityNotFound), errors.Is(err, ErrAlreadyVerified):
		// fold into the generic answer below, otherwise the endpoint could be
		// used to probe which emails have accounts or which are verified
		a.Logger.Debug("resend code suppressed", "error", err)
	default:
		a.Logger.Error("resend code", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	// unknown and already verified accounts get the same answer as known ones
	return ctx.JSON(router.StatusAccepted, map[string]any{
		"message": "If the account exists, a new code has been sent",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.ErrorHandler(ctx, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "Validation failed",
			"text_code":  "VALIDATION",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("login identifier", "identifier", payload.Identifier)
	}

	token, err := a.Auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("login", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.setSessionCookie(ctx, token)

	return ctx.JSON(router.StatusOK, map[string]any{
		"token": token,
	})
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "Logged out",
	})
}

func (a *AuthController) setSessionCookie(ctx router.Context, token string) {
	if setter, ok := a.Auther.(interface {
		SetSessionCookie(router.Context, string)
	}); ok {
		setter.SetSessionCookie(ctx, token)
	}
}

// respondError maps categorized errors to JSON bodies. The response carries
// the message and text code, never internal metadata.
func (a *AuthController) respondError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = router.StatusInternalServerError
	}

	return ctx.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field → message map suitable for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fieldErrors validation.Errors
	if errors.As(err, &fieldErrors) {
		for field, fieldErr := range fieldErrors {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
