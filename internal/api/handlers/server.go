// Package handlers implements the HTTP handlers of the trust engine API.
//
// Handlers push domain errors through c.Error() and let the centralized
// ErrorHandler middleware shape the response. Manual DI, no Wire/Dig.
package handlers

import (
	"github.com/gin-gonic/gin"

	"heartlink.io/trustengine/internal/audit"
	"heartlink.io/trustengine/internal/lifecycle"
	"heartlink.io/trustengine/internal/moderation"
	"heartlink.io/trustengine/internal/pkg/worker"
	"heartlink.io/trustengine/internal/ratelimit"
)

// Server holds the handler dependencies.
type Server struct {
	limiter   *ratelimit.Limiter
	ledger    *audit.Ledger
	engine    *moderation.Engine
	reviews   *moderation.ReviewQueue
	lifecycle *lifecycle.Manager
	pools     *worker.Pools
}

// Deps holds all dependencies for creating a Server.
type Deps struct {
	Limiter   *ratelimit.Limiter
	Ledger    *audit.Ledger
	Engine    *moderation.Engine
	Reviews   *moderation.ReviewQueue
	Lifecycle *lifecycle.Manager
	Pools     *worker.Pools // optional, surfaces in readiness metrics
}

// NewServer creates a Server with all dependencies.
func NewServer(deps Deps) *Server {
	return &Server{
		limiter:   deps.Limiter,
		ledger:    deps.Ledger,
		engine:    deps.Engine,
		reviews:   deps.Reviews,
		lifecycle: deps.Lifecycle,
		pools:     deps.Pools,
	}
}

// actorFromCtx extracts the authenticated user ID set by the JWT middleware.
func actorFromCtx(c *gin.Context) string {
	return c.GetString("user_id")
}
