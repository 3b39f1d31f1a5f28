package service

import (
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTTokenService implements ports.TokenService for tokens minted by the
// external identity/role provider (HS256, shared secret). The engine
// trusts the role claims in a valid token; roles never come from
// client-controlled storage.
type JWTTokenService struct {
	secret []byte
	issuer string
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, issuer string) *JWTTokenService {
	return &JWTTokenService{secret: []byte(secret), issuer: issuer}
}

// Validate parses and validates a provider token, returning the identity
// facts it carries.
func (s *JWTTokenService) Validate(tokenString string) (*ports.IdentityClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("missing subject claim")
	}
	actorID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid actor id in token: %w", err)
	}

	rawRoles, ok := claims["roles"].([]interface{})
	if !ok || len(rawRoles) == 0 {
		return nil, fmt.Errorf("missing roles claim")
	}
	roles := make([]domain.Role, 0, len(rawRoles))
	for _, raw := range rawRoles {
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("malformed roles claim")
		}
		role := domain.Role(str)
		if !role.IsValid() {
			return nil, fmt.Errorf("unknown role %q in token", str)
		}
		roles = append(roles, role)
	}

	identity := domain.Identity{
		ActorID: actorID,
		Roles:   roles,
	}

	if tag, ok := claims["identity_tag"].(string); ok {
		identity.IdentityTag = tag
	}
	if rawOrg, ok := claims["org_id"].(string); ok {
		orgID, err := uuid.Parse(rawOrg)
		if err != nil {
			return nil, fmt.Errorf("invalid org id in token: %w", err)
		}
		identity.OrgID = orgID
	}
	if rawMerchant, ok := claims["merchant_id"].(string); ok && rawMerchant != "" {
		merchantID, err := uuid.Parse(rawMerchant)
		if err != nil {
			return nil, fmt.Errorf("invalid merchant id in token: %w", err)
		}
		identity.MerchantID = &merchantID
	}

	expiresAt := time.Time{}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return &ports.IdentityClaims{Identity: identity, ExpiresAt: expiresAt}, nil
}

// Issue mints a provider-compatible token. Production tokens come from
// the provider itself; this exists for tests and local tooling.
func (s *JWTTokenService) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	roles := make([]string, len(identity.Roles))
	for i, r := range identity.Roles {
		roles[i] = string(r)
	}

	claims := jwt.MapClaims{
		"sub":          identity.ActorID.String(),
		"roles":        roles,
		"identity_tag": identity.IdentityTag,
		"org_id":       identity.OrgID.String(),
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
		"iss":          s.issuer,
	}
	if identity.MerchantID != nil {
		claims["merchant_id"] = identity.MerchantID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return tokenString, nil
}
