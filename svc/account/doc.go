// Package account implements the CodeAI account lifecycle: password signup
// and login, Google sign-in, profile changes, account deletion and password
// recovery through single-use reset tokens.
//
// Service composes a PasswordHasher, a SessionManager, an IdentityVerifier
// and a Storage. Emails go through a Notifier and never affect the result of
// an operation.
//
// Errors are sentinels; KindOf maps any returned error onto a Kind that the
// HTTP layer turns into a status code.
package account
