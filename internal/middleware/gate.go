package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// ContextAccessKey is the gin context key storing the resolved AccessState.
const ContextAccessKey = "accessState"

// AccessResolver loads the registration state behind a session.
type AccessResolver interface {
	Resolve(ctx context.Context, claims *models.JWTClaims) (service.AccessState, error)
}

// RequireApproved admits approved registrations holding one of roles. With no
// roles any approved registration passes. Refusals carry the redirect target
// in the response meta.
func RequireApproved(resolver AccessResolver, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := Claims(c)
		state, err := resolver.Resolve(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		decision := service.Decide(state, roles...)
		if !decision.Granted() {
			response.Error(c, decision.Err(), map[string]interface{}{
				"outcome":  decision.Outcome,
				"redirect": decision.Redirect,
			})
			c.Abort()
			return
		}

		c.Set(ContextAccessKey, state)
		c.Next()
	}
}

// Access returns the state attached by RequireApproved.
func Access(c *gin.Context) (service.AccessState, bool) {
	value, ok := c.Get(ContextAccessKey)
	if !ok {
		return service.AccessState{}, false
	}
	state, ok := value.(service.AccessState)
	return state, ok
}
