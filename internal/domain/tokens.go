package domain

// TokenPair is an identity-provider access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
