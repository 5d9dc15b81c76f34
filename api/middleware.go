package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// OpsAuthMiddleware guards the operator-facing endpoints with the static
// ops key from configuration. An empty key closes the API entirely rather
// than matching an empty bearer token.
func OpsAuthMiddleware(opsKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if opsKey == "" {
			ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Ops API key not configured"})
			ctx.Abort()
			return
		}

		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized Request"})
			ctx.Abort()
			return
		}

		tokenSplit := strings.Split(token, " ")
		if len(tokenSplit) != 2 || strings.ToLower(tokenSplit[0]) != "bearer" {
			ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid token, expects bearer token"})
			ctx.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(tokenSplit[1]), []byte(opsKey)) != 1 {
			ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid ops key"})
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {

		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST,HEAD,PATCH,OPTIONS,GET,PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
