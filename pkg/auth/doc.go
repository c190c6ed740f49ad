// Package auth issues and verifies session tokens.
//
// After a password or external-provider login the API issues an HS256 JWT
// whose subject is the user id:
//
//	issuer, _ := auth.NewTokenIssuer(cfg.Auth.JWTSecret, "taskhub", 24*time.Hour)
//	token, expiresAt, err := issuer.Issue(auth.Principal{UserID: u.ID, Email: u.Email})
//
// middleware.Authenticate verifies the bearer token on each request and stores
// the resulting Principal in the request context, where handlers read it with
// PrincipalFromContext.
package auth
