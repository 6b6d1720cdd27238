// Package accounts provides a small user account service: registration,
// password login with bearer tokens, role checks for HTTP routes and a
// startup reconciler that keeps the configured admin account in place.
//
// Admin reconciliation:
//   - AdminReconciler reads AdminSpec (identity plus password) and drives the
//     store towards a single admin row whose hash verifies against the
//     configured password. Outcomes are skipped, created, confirmed, repaired
//     or failed. Lookup and role promotion failures stop startup (see
//     StartupFatal) while password repair failures leave the stored admin in
//     place and only log.
//   - Concurrent reconcilers rely on the unique identity constraint: the loser
//     of the insert race falls back to verification.
//
// Tokens:
//   - TokenService signs HS256 tokens carrying sub, role, iat and exp. A token
//     is valid while now is strictly before exp. Guard turns an Authorization
//     header into a Principal and RequireAdmin gates admin routes.
//
// Activity sinks:
//   - ActivitySink receives login, registration, deletion and reconciliation
//     events. Sinks run best-effort (errors are logged) so they never block
//     authentication.
package accounts
