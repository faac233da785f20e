package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	"github.com/smallbiznis/streamgate/internal/authorization"
	obscontext "github.com/smallbiznis/streamgate/internal/observability/context"
	"github.com/smallbiznis/streamgate/internal/observability/logger"
	"go.uber.org/zap"
)

const contextOperatorKey = "operator"

// OperatorRequired authenticates support and operator staff by bearer API key.
func (s *Server) OperatorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		operator, ok := s.keys.Resolve(parts[1])
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeOperator), operator.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextOperatorKey, operator)
		c.Next()
	}
}

func (s *Server) authorizeOperator(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator, ok := operatorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), operator, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func operatorFromContext(c *gin.Context) (authorization.Operator, bool) {
	value, ok := c.Get(contextOperatorKey)
	if !ok {
		return authorization.Operator{}, false
	}
	operator, ok := value.(authorization.Operator)
	return operator, ok
}

// PublicRateLimit throttles unauthenticated routes per client IP. Limiter
// outages fail open so payment status polling keeps working.
func (s *Server) PublicRateLimit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.publicLimiter.Enabled() {
			c.Next()
			return
		}

		res, err := s.publicLimiter.Allow(c.Request.Context(), route, c.ClientIP())
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("public rate limit check failed", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
