package common

// Names of the HTTP headers understood by the API.
const (
	AuthorizationHeaderName  = "Authorization"
	MethodOverrideHeaderName = "X-HTTP-Method-Override"
	RequestIDHeaderName      = "X-Request-ID"
	RetryAfterHeaderName     = "Retry-After"
)

// BearerScheme prefixes the token in the Authorization header.
const BearerScheme = "Bearer"

// Keys under which the client keeps its session between runs.
const (
	AuthTokenKey = "auth_token"
	AuthNameKey  = "auth_name"
)

// TokenNameSuffix is appended to the owner's email to label an issued token.
const TokenNameSuffix = "_Token"
