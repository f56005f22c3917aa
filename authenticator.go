package identity

import (
	"context"
	"reflect"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Auther orchestrates registration, verification, and login around the
// credential store, the challenge manager, and the token service.
type Auther struct {
	provider       IdentityProvider
	repo           RepositoryManager
	challenges     *ChallengeManager
	notifier       Notifier
	signingKey     []byte
	logger         Logger
	tokenService   TokenService
	tokenValidator TokenValidator
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, challenges *ChallengeManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	auther := &Auther{
		repo:         repo,
		challenges:   challenges,
		notifier:     noopNotifier{},
		signingKey:   []byte(opts.GetSigningKey()),
		logger:       defLogger{},
		tokenService: tokenService,
	}

	if repo != nil {
		auther.provider = NewUserProvider(repo.Users())
	}

	return auther
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// WithIdentityProvider overrides the default store-backed provider
func (s *Auther) WithIdentityProvider(provider IdentityProvider) *Auther {
	if provider != nil {
		s.provider = provider
	}
	return s
}

// WithNotifier configures the channel that delivers verification codes
func (s *Auther) WithNotifier(notifier Notifier) *Auther {
	s.notifier = normalizeNotifier(notifier)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// WithTokenService overrides the default token service
func (s *Auther) WithTokenService(service TokenService) *Auther {
	if service != nil {
		s.tokenService = service
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register creates an unverified account, issues a verification challenge,
// and dispatches the code over the notification channel. Delivery failures
// are logged and never fail the registration.
func (s *Auther) Register(ctx context.Context, msg RegisterAccountMessage) (*User, error) {
	var created *User
	msg.OnCreated = func(u *User) { created = u }

	handler := NewRegisterAccountHandler(s.repo)
	if err := handler.Execute(ctx, msg); err != nil {
		s.logger.Error("Register account error", "error", err)
		return nil, err
	}

	if created == nil {
		return nil, errors.New("registration produced no record", errors.CategoryInternal)
	}

	if err := s.issueAndNotify(created); err != nil {
		// challenge issuance failed; the account exists and can request a resend
		s.logger.Error("Register challenge issuance error", "error", err, "email", created.Email)
	}

	return created, nil
}

// VerifyAccount matches a submitted code against the live challenge. On a
// valid match the account is marked verified exactly once and a fresh session
// token is minted.
func (s *Auther) VerifyAccount(ctx context.Context, email, code string) (*VerifiedAccount, error) {
	switch s.challenges.Verify(email, code) {
	case VerificationNotFound:
		return nil, ErrChallengeNotFound
	case VerificationExpired:
		return nil, ErrChallengeExpired
	case VerificationMismatch:
		return nil, ErrChallengeMismatch
	case VerificationValid:
		// fall through to consume the successful match
	}

	user, err := s.repo.Users().GetByIdentifier(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account for verification")
	}

	if err := s.repo.Users().MarkVerified(ctx, user.ID); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to mark account verified")
	}
	user.EmailVerified = true

	token, err := s.tokenService.Generate(identityFromUser(user))
	if err != nil {
		return nil, err
	}

	return &VerifiedAccount{
		Token:   token,
		Profile: user.PublicProfile(),
	}, nil
}

// ResendCode re-issues a challenge for a registered, not yet verified
// account, superseding any previously issued code.
func (s *Auther) ResendCode(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to load account for resend")
	}

	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	return s.issueAndNotify(user)
}

func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.VerifyIdentity(ctx, identifier, password); err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login token generation error", "error", err)
		return "", err
	}

	return token, nil
}

// ChangeRole updates the target account's role. Only admins may call it, and
// an admin can never change their own role; the last admin cannot lock the
// platform out of account management by accident.
func (s *Auther) ChangeRole(ctx context.Context, actor Identity, targetID uuid.UUID, newRole Role) error {
	if actor == nil {
		return ErrForbidden
	}

	actorRole, ok := ParseRole(actor.Role())
	if !ok || !actorRole.CanModerate() {
		return ErrForbidden
	}

	if actor.ID() == targetID.String() {
		return ErrForbidden
	}

	if !newRole.IsValid() {
		return errors.New("unknown role", errors.CategoryValidation).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": newRole})
	}

	if err := s.repo.Users().UpdateRole(ctx, targetID, newRole); err != nil {
		if errors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to update role")
	}

	return nil
}

// ChangePassword rotates the credential after re-verifying the current one.
// Existing session tokens stay valid until their encoded expiry.
func (s *Auther) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, id.String())
	if err != nil {
		if errors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to load account")
	}

	if err := ComparePasswordAndHash(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	return s.repo.Users().ResetPassword(ctx, id, hash)
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier", "error", err)
		return nil, err
	}

	return identity, nil
}

func (s Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// issueAndNotify stores a fresh challenge and dispatches it fire-and-forget.
// The goroutine gets a detached context so request cancellation cannot abort
// an in-flight delivery.
func (s *Auther) issueAndNotify(user *User) error {
	code, err := s.challenges.Issue(user.Email)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to issue verification code")
	}

	identity := identityFromUser(user)
	notifier := normalizeNotifier(s.notifier)
	logger := s.logger

	go func() {
		if err := notifier.Send(context.Background(), identity, code); err != nil {
			logger.Warn("verification code delivery failed", "error", err, "email", identity.Email())
		}
	}()

	return nil
}

var _ Authenticator = (*Auther)(nil)
