package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// Roles recognised by the token issuer.
const (
	RolePassenger = "PASSENGER"
	RoleDriver    = "DRIVER"
	RoleAdmin     = "ADMIN"
)

// Verification purposes. A challenge is always bound to exactly one of them.
const (
	PurposePhone = "phone"
	PurposeEmail = "email"
)
