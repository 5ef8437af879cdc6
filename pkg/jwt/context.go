package jwt

import "context"

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var subjectContextKey = &contextKey{name: "jwt_subject"}

func withSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}

// SubjectFromContext returns the subject stored by Authenticate, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok && subject != ""
}
