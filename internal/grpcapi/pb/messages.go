// Package pb holds the message and service-method shapes described by
// tokenexchange.proto. They are hand-authored Go structs rather than
// protoc-generated code: no protoc toolchain is available in this
// environment, and internal/grpcapi pairs them with a JSON wire codec
// (see codec.go) instead of the compiled protobuf binary format.
package pb

type ExchangeTokenRequest struct {
	IdentityToken string `json:"identity_token"`
	TenantID      string `json:"tenant_id"`
	ServiceID     string `json:"service_id"`
}

type ExchangeTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int32  `json:"expires_in"`
}

type ValidateTokenRequest struct {
	Token            string `json:"token"`
	ExpectedAudience string `json:"expected_audience"`
}

type ValidateTokenResponse struct {
	Valid     bool   `json:"valid"`
	Subject   string `json:"subject"`
	TokenType string `json:"token_type"`
	Error     string `json:"error,omitempty"`
}

type GetUserRolesRequest struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	ServiceID string `json:"service_id"`
}

type GetUserRolesResponse struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type IntrospectTokenRequest struct {
	Token string `json:"token"`
}

type IntrospectTokenResponse struct {
	Active    bool   `json:"active"`
	Subject   string `json:"subject"`
	TokenType string `json:"token_type"`
	ExpiresAt int64  `json:"expires_at"`
	TenantID  string `json:"tenant_id,omitempty"`
}
