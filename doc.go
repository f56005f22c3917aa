// Package identity implements the identity-verification and session-issuance
// subsystem of a content platform: account registration, one-time-passcode
// (OTP) challenges, password login, signed session tokens, and role-based
// access enforcement.
//
// Verification lifecycle:
//   - Registration creates an unverified User and issues a short-lived numeric
//     challenge through the ChallengeManager. The challenge is delivered over a
//     caller-supplied Notifier; delivery failure is logged and never fails the
//     surrounding operation.
//   - Submitting the matching code consumes the challenge atomically, marks the
//     account verified exactly once, and mints a session token. Mismatched
//     codes keep the challenge alive so legitimate retries remain possible
//     until the TTL elapses.
//
// Sessions:
//   - Tokens are self-contained JWTs carrying {subject, role, iat, exp}. There
//     is no server-side session table and no revocation: a minted token stays
//     valid until its encoded expiry regardless of later password or role
//     changes. Logout only clears the client-held cookie. If revocation is
//     required, layer a denylist keyed by the jti claim in front of Validate.
//
// Access control:
//   - Roles form a closed set (reader, author, admin). The jwtware middleware
//     verifies tokens and enforces role membership before protected handlers
//     run; the ratelimit middleware bounds request frequency per client and
//     endpoint class ahead of everything else.
package identity
