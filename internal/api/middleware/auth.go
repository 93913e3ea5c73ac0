package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fespa/contest-api/internal/api/handler/v1/response"
)

const (
	// CtxKeyUserID is set on the gin context after a token is verified.
	CtxKeyUserID = "userID"
	// CtxKeyRole carries the token's role claim.
	CtxKeyRole = "role"

	RoleAdmin = "admin"
)

type UserClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	signingKey string
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: signingKey,
	}
}

// VerifyJWT validates the Bearer token and stores the caller's identity on
// the context. Requests without a valid token are rejected with 401.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := a.parseToken(ctx)
		if !ok {
			return
		}

		claims, ok := token.Claims.(*UserClaims)
		if !ok || claims.UserID == 0 {
			response.RenderErr(ctx, response.ErrUnauthorized("invalid token claims"))
			return
		}

		ctx.Set(CtxKeyUserID, claims.UserID)
		ctx.Set(CtxKeyRole, claims.Role)
		ctx.Next()
	}
}

// RequireAdmin layers on top of VerifyJWT and rejects non-admin callers.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role := ctx.GetString(CtxKeyRole)
		if role != RoleAdmin {
			response.RenderErr(ctx, response.ErrUnauthorized("admin access required"))
			return
		}

		ctx.Next()
	}
}

func (a *Authenticator) parseToken(ctx *gin.Context) (*jwt.Token, bool) {
	header := ctx.GetHeader("Authorization")
	if header == "" {
		response.RenderErr(ctx, response.ErrUnauthorized("authorization header is missing"))
		return nil, false
	}

	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		response.RenderErr(ctx, response.ErrUnauthorized("authorization header is malformed"))
		return nil, false
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.signingKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		response.RenderErr(ctx, response.ErrUnauthorized("token is invalid or expired"))
		return nil, false
	}

	return token, true
}
