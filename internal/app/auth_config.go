package app

import "github.com/epicgather/epicgather/internal/auth"

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// RefreshServiceConfig converts AuthConfig into RefreshService parameters.
func (c AuthConfig) RefreshServiceConfig() auth.RefreshConfig {
	ttl := c.Refresh.TTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Refresh.TokenLength
	if length <= 0 {
		length = 48
	}

	return auth.RefreshConfig{
		RefreshTokenTTL: ttl,
		TokenLength:     length,
	}
}

// TokenServiceConfig converts AuthConfig into TokenService parameters.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	ttl := c.Tokens.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSingleUseTokenTTL
	}

	return auth.TokenConfig{TokenTTL: ttl}
}
