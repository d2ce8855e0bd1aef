package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/intervyu/internal/utils"
)

const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxUserName = "user_name"
)

type apiError struct {
	Success bool       `json:"success"`
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func abort(c *gin.Context, status int, code utils.Code, msg string) {
	c.AbortWithStatusJSON(status, apiError{Code: code, Message: msg})
}

// JWTConfig verifies Supabase-issued HS256 access tokens.
type JWTConfig struct {
	Secret   string
	Issuer   string // optional
	Audience string // optional
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Role         string         `json:"role"`         // usually "authenticated" / "anon"
	AppMetadata  map[string]any `json:"app_metadata"` // put {"role":"admin"} here
	UserMetadata map[string]any `json:"user_metadata"`
}

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

func (cfg JWTConfig) parse(header string) (*supabaseClaims, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return nil, errMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &supabaseClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil || tok == nil || !tok.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}

func setIdentity(c *gin.Context, claims *supabaseClaims) {
	// Default role: "user" (app-level role)
	appRole := "user"
	if s, ok := claims.AppMetadata["role"].(string); ok && s != "" {
		appRole = s
	}

	name := ""
	for _, k := range []string{"full_name", "name"} {
		if s, ok := claims.UserMetadata[k].(string); ok && s != "" {
			name = s
			break
		}
	}

	c.Set(CtxUserID, claims.Subject) // Supabase user UUID is in "sub"
	c.Set(CtxRole, appRole)
	c.Set(CtxUserName, name)
}

func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			abort(c, http.StatusInternalServerError, utils.CodeInternal, "SUPABASE_JWT_SECRET is not set")
			return
		}

		header := c.GetHeader("Authorization")
		// browsers can't set headers on a websocket handshake
		if header == "" && c.Query("access_token") != "" {
			header = "Bearer " + c.Query("access_token")
		}

		claims, err := cfg.parse(header)
		if err != nil {
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth sets the identity when a valid token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalJWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || cfg.Secret == "" {
			c.Next()
			return
		}
		claims, err := cfg.parse(header)
		if err != nil {
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}
