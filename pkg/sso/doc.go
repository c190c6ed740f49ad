// Package sso implements login through external identity providers.
//
// Two protocols are supported. GitHub speaks plain OAuth2, so OAuth2Provider
// exchanges the code and reads the profile and primary email from the user
// API. Google speaks OpenID Connect, so OIDCProvider verifies the returned ID
// token against the issuer's published keys and reads the claims.
//
// Both produce an identity.ExternalLogin. Handlers runs the browser flow:
//
//	GET /auth/oauth/{provider}/login     redirect to the provider with a state cookie
//	GET /auth/oauth/{provider}/callback  check state, exchange the code,
//	                                     LoginOrCreateAccount, issue a session token
//
// and finally redirects to the frontend with the token or a failure status.
package sso
