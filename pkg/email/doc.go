// Package email sends transactional emails.
//
// EmailSender is implemented by a Postmark client for production, a DevSender
// that writes each message to disk as HTML plus JSON metadata, and a LogSender
// that only logs. NewSender picks one from Config.Driver.
//
// Render produces the subject and body of the account emails (welcome,
// password reset, reset confirmation) from the templ components in the
// templates subpackage.
package email
