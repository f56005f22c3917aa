package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage carries the inputs for account creation. Role is
// restricted to the self-assignable subset; admin accounts are only created
// by promoting an existing account via ChangeRole.
type RegisterAccountMessage struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
	Password  string `json:"password"`
	UseHashid bool   `json:"-"`

	// OnCreated receives the stored record before the transaction returns
	OnCreated func(*User)
}

func (e RegisterAccountMessage) Type() string { return "identity.register" }

// RegisterAccountHandler creates unverified credential records
type RegisterAccountHandler struct {
	repo RepositoryManager
}

func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{repo: repo}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if event.Role != "" && !event.Role.IsSelfAssignable() {
		return goerrors.New("role is not self-assignable", goerrors.CategoryAuthz).
			WithTextCode("FORBIDDEN").
			WithMetadata(map[string]any{"role": event.Role})
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		phone, err := NormalizePhone(event.Phone)
		if err != nil {
			return err
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Phone = phone
		user.Username = getUsername(event.Username, event.Email)
		user.Role = event.Role
		user.EmailVerified = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			if goerrors.Is(err, ErrDuplicateIdentity) {
				return err
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	if event.OnCreated != nil {
		event.OnCreated(user)
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	return usernameFromEmail(email)
}
