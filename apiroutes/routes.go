package apiroutes

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/api"
	restinterceptors "github.com/mailio/go-keyless-server/api/interceptors"
	"github.com/mailio/go-keyless-server/chain"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/metrics"
	"github.com/mailio/go-keyless-server/repository"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/storage"
	"github.com/mailio/go-keyless-server/types"
	"github.com/mailio/go-keyless-server/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the long lived services shared by the REST API, the task queue and cron jobs
type Services struct {
	EphemeralKeys *services.EphemeralKeyService
	Accounts      *services.KeylessAccountService
	Binder        *services.IdentityBinderService
	Login         *services.LoginService
	Transactions  *services.TransactionService
	Communities   *services.CommunityService
	Media         *services.MediaService
	Node          *chain.Client
}

// NewServices wires the services on the redis session store, CouchDB and the chain clients
func NewServices(dbSelector repository.DBSelector, env *types.Environment, keyring *util.Keyring) *Services {
	store := storage.NewRedisStore(env.RedisClient)
	node := chain.NewClient(global.Conf.Chain.NodeURL)

	// the faucet is optional (mainnet has none)
	var funder chain.AccountFunder
	if global.Conf.Chain.FaucetURL != "" {
		funder = chain.NewFaucet(global.Conf.Chain.FaucetURL)
	}
	prover := chain.NewKeylessProver(global.Conf.Chain.PepperURL, global.Conf.Chain.ProverURL)

	binder := services.NewIdentityBinderService(prover, node, funder)
	if global.Conf.Identity.JwksURL != "" {
		// the cache refreshes in the background for the lifetime of the process
		keySet, err := services.NewCachedKeySet(context.Background(), global.Conf.Identity.JwksURL)
		if err != nil {
			level.Warn(global.Logger).Log("msg", "failed to load identity provider keys, signature check deferred to the prover", "jwks", global.Conf.Identity.JwksURL, "err", err)
		} else {
			binder.WithKeySet(keySet)
		}
	}

	ephemeralKeys := services.NewEphemeralKeyService(store)
	accounts := services.NewKeylessAccountService(store, ephemeralKeys)

	var enqueuer services.TaskEnqueuer
	if env.TaskClient != nil {
		enqueuer = env.TaskClient
	}

	return &Services{
		EphemeralKeys: ephemeralKeys,
		Accounts:      accounts,
		Binder:        binder,
		Login:         services.NewLoginService(ephemeralKeys, binder, accounts),
		Transactions:  services.NewTransactionService(accounts, node, store, enqueuer),
		Communities:   services.NewCommunityService(dbSelector, keyring),
		Media:         services.NewMediaService(env),
		Node:          node,
	}
}

// the login popup and the app call the API with credentials from the allowed origins only
func sessionCORS(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{restinterceptors.SessionTokenHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// REST API routes
func ConfigRoutes(router *gin.Engine, svc *Services) *gin.Engine {
	// init metrics
	if global.Conf.Prometheus.Enabled {

		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// API definitions
	healthCheckApi := api.NewHealthCheckAPI(svc.Node)
	authApi := api.NewAuthApi(svc.Login)
	accountApi := api.NewAccountApi(svc.Accounts)
	transactionApi := api.NewTransactionApi(svc.Transactions)
	communityApi := api.NewCommunityApi(svc.Communities)
	mediaApi := api.NewMediaApi(svc.Media)

	router.GET("/healthcheck", healthCheckApi.HealthCheck)

	if len(global.Conf.Identity.AllowedOrigins) > 0 {
		router.Use(sessionCORS(global.Conf.Identity.AllowedOrigins))
	}

	// PUBLIC API (starts a session when the caller has none)
	publicApi := router.Group("/api", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware(), restinterceptors.EnsureSessionMiddleware())
	{
		publicApi.GET("/v1/auth/login", authApi.Login)
		publicApi.POST("/v1/auth/callback", authApi.Callback)
	}

	// SESSION API
	sessionApi := router.Group("/api", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware(), restinterceptors.SessionMiddleware())
	{
		sessionApi.GET("/v1/account", accountApi.GetAccount)
		sessionApi.POST("/v1/logout", accountApi.Logout)

		sessionApi.POST("/v1/transactions", transactionApi.Submit)
		sessionApi.GET("/v1/transactions/:hash", transactionApi.GetStatus)

		sessionApi.POST("/v1/communities", communityApi.CreateCommunity)
		sessionApi.GET("/v1/communities/:hash", communityApi.GetCommunity)

		sessionApi.POST("/v1/media", mediaApi.Upload)
		sessionApi.DELETE("/v1/media/*key", mediaApi.Unpin)
	}

	return router
}
