package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/audit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/config"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ledger"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/strategy"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/subscription"
)

type Deps struct {
	Server        config.ServerConfig
	Version       string
	Logger        *zap.Logger
	Store         Pinger
	Auth          *auth.Authority
	Strategies    *strategy.Registry
	Ledger        *ledger.Ledger
	Subscriptions *subscription.Registry
	Guard         *Guard
	Audit         *audit.Recorder
}

// NewEngine builds the gin engine with every route registered.
func NewEngine(d Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(CORS(d.Server.CORSOrigins))
	engine.Use(RequestLogger(d.Logger))
	engine.Use(Timeout(d.Server.RequestTimeout))
	engine.Use(BodyLimit(d.Server.MaxBodyBytes))
	engine.Use(audit.WriteMiddleware(d.Audit))

	(&HealthHandler{Store: d.Store, Version: d.Version}).Register(engine)
	RegisterDocs(engine)
	(&AuthHandler{Auth: d.Auth, Guard: d.Guard, Audit: d.Audit}).Register(engine)
	(&AdminHandler{Auth: d.Auth, Guard: d.Guard, Audit: d.Audit}).Register(engine)
	(&StrategyHandler{Strategies: d.Strategies, Guard: d.Guard, Audit: d.Audit}).Register(engine)
	(&DataHandler{Ledger: d.Ledger, Guard: d.Guard, Audit: d.Audit}).Register(engine)
	(&SubscriptionHandler{Subscriptions: d.Subscriptions, Guard: d.Guard, Audit: d.Audit}).Register(engine)

	engine.NoRoute(func(c *gin.Context) {
		Error(c, errRouteNotFound(c.Request.URL.Path))
	})
	return engine
}
