package common

// AuthorizationHeaderName is the HTTP header and gRPC metadata key carrying
// the bearer token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the only authorization scheme accepted by the server.
const BearerScheme = "Bearer"

// RequestIDHeaderName is echoed on every HTTP response.
const RequestIDHeaderName = "X-Request-Id"
