// Package controllers adapts HTTP requests to service calls. Handlers take
// a *ctx.Context and report service failures through fail.
package controllers

import (
	"net/http"

	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/ctx"
)

// fail writes err as the JSON error envelope. Internal causes are logged
// and replaced by the generic message.
func fail(c *ctx.Context, err error) {
	se := services.AsError(err)
	status := se.Status()
	if status >= http.StatusInternalServerError {
		c.Logger().Error("request failed", "error", err)
		msg := se.Message
		if msg == "" {
			msg = "Internal server error"
		}
		c.Error(status, msg)
		return
	}
	c.Error(status, se.Message)
}

func requester(c *ctx.Context) services.Requester {
	return services.Requester{UserID: c.UserID(), Admin: c.IsAdmin()}
}
