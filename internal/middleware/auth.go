package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/auth"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
)

const (
	ContextActor   = "actor"
	ContextActorID = "actor_id"
)

type AuthMiddleware struct {
	tokens auth.JWTService
}

func NewAuthMiddleware(tokens auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the actor in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		actor := model.Actor{ID: claims.Subject, Name: claims.Name, Roles: claims.Roles}
		if actor.Name == "" {
			actor.Name = claims.Email
		}
		c.Set(ContextActor, actor)
		c.Set(ContextActorID, actor.ID)
		c.Next()
	}
}

// RequireRole rejects actors that do not hold role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("no authenticated actor")))
			return
		}
		if !actor.HasRole(role) {
			httputil.RespondWithError(c, apperrors.Forbidden("requires role "+role))
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated actor.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
