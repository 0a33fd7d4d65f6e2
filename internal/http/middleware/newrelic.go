// README: New Relic transaction middleware; a no-op when the agent is not configured.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

func NewRelic(app *newrelic.Application) gin.HandlerFunc {
	return func(c *gin.Context) {
		if app == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		txn := app.StartTransaction(c.Request.Method + " " + route)
		defer txn.End()

		txn.SetWebRequestHTTP(c.Request)
		c.Request = newrelic.RequestWithTransactionContext(c.Request, txn)
		c.Next()
		// A nil writer records the status code only.
		txn.SetWebResponse(nil).WriteHeader(c.Writer.Status())
	}
}
