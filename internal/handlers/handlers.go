package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"touris/api/internal/config"
	"touris/api/internal/middleware"
	"touris/api/internal/models"
	"touris/api/internal/ratelimit"
	"touris/api/internal/security"
	"touris/api/internal/service"
)

// Dependencies are built once in main and shared by every request. DB and
// Cache are only used by the health probe and may be nil.
type Dependencies struct {
	Auth       *service.AuthService
	Federation *service.FederationService
	Accounts   *service.AccountService
	Tokens     *security.TokenIssuer
	Limiter    *ratelimit.Limiter
	DB         *pgxpool.Pool
	Cache      *redis.Client
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	auth       *service.AuthService
	federation *service.FederationService
	accounts   *service.AccountService
	tokens     *security.TokenIssuer
	limiter    *ratelimit.Limiter
	db         *pgxpool.Pool
	cache      *redis.Client
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	registerValidators()

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		auth:       deps.Auth,
		federation: deps.Federation,
		accounts:   deps.Accounts,
		tokens:     deps.Tokens,
		limiter:    deps.Limiter,
		db:         deps.DB,
		cache:      deps.Cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authenticate := middleware.Authenticate(h.tokens, h.auth, h.log)
	limited := middleware.RateLimit(h.limiter, h.log)

	auth := router.Group("/auth")
	{
		auth.POST("/register", limited, h.RegisterUser)
		auth.POST("/login", limited, h.Login)
		auth.POST("/login/admin", limited, h.LoginAdmin)
		auth.POST("/login/partner", limited, h.LoginPartner)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/request-reset", limited, h.RequestPasswordReset)
		auth.POST("/reset-password", limited, h.ResetPassword)
		auth.POST("/google", limited, h.GoogleLogin)

		auth.POST("/logout", authenticate, h.Logout)
		auth.GET("/me", authenticate, h.Me)
		auth.PUT("/change-password", authenticate, h.ChangePassword)
		auth.POST("/unlink-google", authenticate, h.UnlinkGoogle)
	}

	adminOnly := middleware.RequireRole(models.UserRoleAdmin)
	owner := middleware.RequireOwnershipOrRole("id", models.UserRoleAdmin)

	users := router.Group("/users")
	users.Use(authenticate)
	{
		users.GET("", adminOnly, h.ListUsers)
		users.GET("/role/:role", adminOnly, h.ListUsers)
		users.GET("/:id", owner, h.GetUser)
		users.PUT("/:id", owner, h.UpdateUser)
		users.DELETE("/:id", adminOnly, h.DeleteUser)
		users.POST("/:id/avatar", owner, h.UploadAvatar)
	}

	admin := router.Group("/admin")
	admin.Use(authenticate, adminOnly)
	{
		admin.POST("/users", h.AdminCreateUser)
		admin.GET("/users/:id", h.GetUser)
		admin.PUT("/users/:id/role", h.AdminUpdateRole)
		admin.GET("/partners", h.AdminListPartners)
		admin.GET("/partners/:id", h.AdminGetPartner)
		admin.PUT("/partners/:id/status", h.AdminUpdatePartnerStatus)
	}

	partner := router.Group("/partner")
	partner.Use(authenticate)
	{
		partner.GET("/profile", middleware.RequirePartner(), h.PartnerProfile)
		partner.GET("/account", middleware.RequireApprovedPartner(), h.PartnerAccount)
	}
}
