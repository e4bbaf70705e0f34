package domain

// TokenPair is what a successful login or federated login returns. The same
// values are also written to the access_token and refresh_token cookies.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
