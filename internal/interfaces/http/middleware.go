package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/pkg/utils"
)

const callerKey = "caller"

// callerIdentity reads the authenticated caller from header and stores it
// on the request context. Requests without one are rejected.
func callerIdentity(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(header)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing caller identity header " + header,
			})
			return
		}
		if err := utils.ValidateToken("caller identity", raw, workflow.MaxIdentityLength); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.Set(callerKey, raw)
		c.Next()
	}
}

// caller returns the identity stored by callerIdentity
func caller(c *gin.Context) workflow.Identity {
	return workflow.Identity(c.GetString(callerKey))
}
