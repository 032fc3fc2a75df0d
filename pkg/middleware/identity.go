package middleware

import "github.com/gin-gonic/gin"

// UserIDKey is the gin context key carrying the authenticated user id.
const UserIDKey = "user_id"

// Identity trusts the user id asserted by the upstream identity provider.
// Authentication itself happens outside this service.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(UserIDKey, id)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (string, bool) {
	id, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	s, _ := id.(string)
	return s, s != ""
}
