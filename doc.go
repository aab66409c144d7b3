// Package signup provides the identity layer of a multi-tenant product:
// signed session tokens, request session resolution, safe post-login
// redirects and the registration lifecycle that turns an email address
// into an activated app user.
//
// Sessions:
//   - A session is either AppClaims (an activated user scoped to one
//     client) or PendingClaims (a registrant that has not finished
//     onboarding). TokenAuthority signs and verifies both shapes as HS256
//     JWTs and rejects anything in between.
//   - Resolver reads the bearer header first and the session cookie
//     second. ResolveAndPromote upgrades a pending session once the
//     signup has been activated by the billing flow.
//
// Registration:
//   - Lifecycle.Register upserts a pending signup, keyed by normalized
//     email, and asks the Verifier to mail a single use link. Only the
//     peppered SHA-256 of the link token is stored.
//   - Verifier.Redeem consumes the link and returns either a pending
//     session or a login redirect when the signup is already active.
//   - ExpireStale sweeps unverified signups older than the configured
//     age. Expired rows are revived by the next registration or social
//     login.
//
// The social package adds a provider neutral OAuth mediator that
// reconciles a verified provider identity into the same two session
// shapes.
package signup
