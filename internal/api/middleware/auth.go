package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/evetabi/bookie/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxAccountID = "accountID"
	CtxRole      = "role"
)

// Roles carried in token claims. Accounts and credentials are managed by an
// external identity service; this API only verifies the signed role.
const (
	RoleBettor   = "bettor"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Claims is the token payload: the registered subject holds the account id
// as a decimal string, role gates the operator surface.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the Bearer token in the Authorization header.
// On success it stores accountID (domain.AccountID) and role (string) in the
// gin context.
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrUnauthorized.Error(),
			})
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		claims := &Claims{}
		tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrTokenInvalid.Error(),
			})
			return
		}

		accountID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || accountID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrTokenInvalid.Error(),
			})
			return
		}

		c.Set(CtxAccountID, domain.AccountID(accountID))
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RoleMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// RoleMiddleware ensures the authenticated caller has one of the allowed
// roles. Must be placed after JWTMiddleware in the chain.
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role, _ := c.Get(CtxRole)
		roleStr, _ := role.(string)
		if !allowed[roleStr] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": domain.ErrForbidden.Error(),
			})
			return
		}
		c.Next()
	}
}

// OperatorMiddleware allows only roles that may run group administration
// operations. Must be placed after JWTMiddleware in the chain.
func OperatorMiddleware() gin.HandlerFunc {
	return RoleMiddleware(RoleOperator, RoleAdmin)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper — extract accountID from context (for use in handlers)
// ──────────────────────────────────────────────────────────────────────────────

// GetAccountID retrieves the authenticated account id from the gin context.
// Returns 0 if the middleware was not applied or the value is missing.
func GetAccountID(c *gin.Context) domain.AccountID {
	v, exists := c.Get(CtxAccountID)
	if !exists {
		return 0
	}
	id, _ := v.(domain.AccountID)
	return id
}

// GetRole retrieves the authenticated caller's role string from the gin context.
func GetRole(c *gin.Context) string {
	v, _ := c.Get(CtxRole)
	r, _ := v.(string)
	return r
}
