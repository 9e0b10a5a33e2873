package middlewares

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity reads the caller's identity from headers set by the gateway
// (X-User-Id, X-User-Name, X-User-Role) and stores it on the request
// context. A correlation id is taken from X-Correlation-Id or generated.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIdHeader := c.GetHeader("X-User-Id")
		role := c.GetHeader("X-User-Role")
		if userIdHeader == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity headers"})
			return
		}
		userId, err := strconv.Atoi(userIdHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		correlationId := c.GetHeader("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}

		ctx := c.Request.Context()
		ctx = utils.SetUserIdInContext(ctx, userId)
		ctx = utils.SetUserNameInContext(ctx, c.GetHeader("X-User-Name"))
		ctx = utils.SetUserRoleInContext(ctx, role)
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Correlation-Id", correlationId)
		c.Next()
	}
}
