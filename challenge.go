package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"sync"
	"time"
)

// VerificationStatus is the outcome of matching a submitted code against the
// live challenge for an identity.
type VerificationStatus string

const (
	// VerificationValid means the code matched before expiry; the challenge is consumed
	VerificationValid VerificationStatus = "valid"
	// VerificationNotFound means no live challenge exists for the identity
	VerificationNotFound VerificationStatus = "not_found"
	// VerificationExpired means the TTL elapsed; the challenge is removed
	VerificationExpired VerificationStatus = "expired"
	// VerificationMismatch means the code differs; the challenge is retained
	VerificationMismatch VerificationStatus = "mismatch"
)

// DefaultChallengeTTL is how long an issued code stays valid
const DefaultChallengeTTL = 10 * time.Minute

// DefaultSweepInterval bounds memory growth from abandoned registrations
const DefaultSweepInterval = time.Minute

// CodeDigits is the fixed width of generated codes
const CodeDigits = 6

type challenge struct {
	code      string
	issuedAt  time.Time
	expiresAt time.Time
}

// ChallengeManager owns the live one-time-passcode challenges, keyed by
// normalized email. All map access, including the background sweep, happens
// under one mutex so a code can never be consumed twice and the sweep can
// never race an in-flight verification.
type ChallengeManager struct {
	mu         sync.Mutex
	challenges map[string]challenge

	ttl           time.Duration
	sweepInterval time.Duration
	logger        Logger
	now           func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// ChallengeOption customizes a ChallengeManager
type ChallengeOption func(*ChallengeManager)

// WithChallengeTTL overrides the code validity window
func WithChallengeTTL(ttl time.Duration) ChallengeOption {
	return func(m *ChallengeManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSweepInterval overrides how often expired challenges are collected
func WithSweepInterval(interval time.Duration) ChallengeOption {
	return func(m *ChallengeManager) {
		if interval > 0 {
			m.sweepInterval = interval
		}
	}
}

// WithChallengeLogger sets the logger used by the sweep loop
func WithChallengeLogger(logger Logger) ChallengeOption {
	return func(m *ChallengeManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithChallengeClock overrides the time source. Tests use it to cross the TTL
// boundary without sleeping.
func WithChallengeClock(now func() time.Time) ChallengeOption {
	return func(m *ChallengeManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewChallengeManager creates a manager and starts its background sweep.
// Callers own the lifecycle and should Stop it on shutdown.
func NewChallengeManager(opts ...ChallengeOption) *ChallengeManager {
	m := &ChallengeManager{
		challenges:    make(map[string]challenge),
		ttl:           DefaultChallengeTTL,
		sweepInterval: DefaultSweepInterval,
		logger:        defLogger{},
		now:           time.Now,
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	go m.sweepLoop()

	return m
}

// Stop halts the background sweep. Safe to call more than once.
func (m *ChallengeManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

// Issue generates a fresh code for the identity and stores it with the
// configured TTL, superseding any prior unconsumed challenge. The code is
// returned for delivery over the notification channel.
func (m *ChallengeManager) Issue(email string) (string, error) {
	code, err := generateCode(CodeDigits)
	if err != nil {
		return "", err
	}

	key := NormalizeEmail(email)
	issuedAt := m.now()

	m.mu.Lock()
	m.challenges[key] = challenge{
		code:      code,
		issuedAt:  issuedAt,
		expiresAt: issuedAt.Add(m.ttl),
	}
	m.mu.Unlock()

	return code, nil
}

// Verify matches a submitted code against the live challenge for the
// identity. The check-then-remove sequence runs under the manager lock, so
// for a given challenge exactly one concurrent caller can observe
// VerificationValid; the rest see VerificationNotFound once it is consumed.
func (m *ChallengeManager) Verify(email, submitted string) VerificationStatus {
	key := NormalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[key]
	if !ok {
		return VerificationNotFound
	}

	// the live window is [issuedAt, expiresAt), matching session tokens
	if !m.now().Before(c.expiresAt) {
		delete(m.challenges, key)
		return VerificationExpired
	}

	if subtle.ConstantTimeCompare([]byte(c.code), []byte(submitted)) != 1 {
		// retained so legitimate retries remain possible until TTL
		return VerificationMismatch
	}

	delete(m.challenges, key)
	return VerificationValid
}

// Cancel drops any live challenge for the identity without consuming it
func (m *ChallengeManager) Cancel(email string) {
	key := NormalizeEmail(email)
	m.mu.Lock()
	delete(m.challenges, key)
	m.mu.Unlock()
}

// Len reports the number of live challenges
func (m *ChallengeManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.challenges)
}

func (m *ChallengeManager) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if removed := m.sweepExpired(); removed > 0 {
				m.logger.Debug("challenge sweep removed expired codes", "count", removed)
			}
		}
	}
}

func (m *ChallengeManager) sweepExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, c := range m.challenges {
		if !now.Before(c.expiresAt) {
			delete(m.challenges, key)
			removed++
		}
	}
	return removed
}

// generateCode draws a uniform fixed-width numeric code from crypto/rand
func generateCode(digits int) (string, error) {
	bound := big.NewInt(1)
	for i := 0; i < digits; i++ {
		bound.Mul(bound, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}

	code := n.String()
	for len(code) < digits {
		code = "0" + code
	}
	return code, nil
}
