package router

import (
	"github.com/gin-gonic/gin"

	healthHandler "github.com/jwalitptl/inventory-api/internal/handler/health"
	prometheusHandler "github.com/jwalitptl/inventory-api/internal/handler/prometheus"
	"github.com/jwalitptl/inventory-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit float64
	RateBurst int
}

// Router wires the HTTP surface: public catalog, stock and reporting
// routes, plus the JWT-protected operator recovery routes.
type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	productH    Handler
	stockH      Handler
	reportH     Handler
	outboxAdmin Handler
	healthH     *healthHandler.Handler
	promH       *prometheusHandler.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	productH Handler,
	stockH Handler,
	reportH Handler,
	outboxAdmin Handler,
	healthH *healthHandler.Handler,
	promH *prometheusHandler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		promH.Middleware(),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(config.RateLimit, config.RateBurst)
		engine.Use(rateLimiter.RateLimit())
	}

	return &Router{
		engine:      engine,
		auth:        auth,
		productH:    productH,
		stockH:      stockH,
		reportH:     reportH,
		outboxAdmin: outboxAdmin,
		healthH:     healthH,
		promH:       promH,
	}
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.promH.Handler())

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.productH.RegisterRoutes(api)
	r.stockH.RegisterRoutes(api)
	r.reportH.RegisterRoutes(api)

	// Recovery operations mutate delivery state; operators only.
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.outboxAdmin.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
