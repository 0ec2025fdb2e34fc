package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presensure/internal/auth"
	"presensure/internal/httpmiddleware"
	"presensure/internal/realtime"
)

// Options configures the router.
type Options struct {
	Handler   *Handler
	Checkins  *realtime.Checkins
	Dashboard *realtime.Hub
	Tokens    TokenConfig

	AllowOrigins     []string // empty allows any origin
	RateLimitPerMin  int      // 0 disables the global limit
	LoginLimitPerMin int      // 0 disables the login limit
	Logging          bool
}

// NewRouter wires every route and middleware.
func NewRouter(o Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if o.Logging {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(corsConfig(o.AllowOrigins))
	r.Use(securityHeaders())
	if o.RateLimitPerMin > 0 {
		r.Use(httpmiddleware.NewTokenBucket(o.RateLimitPerMin, o.RateLimitPerMin).Middleware(httpmiddleware.ByClientIP))
	}

	h := o.Handler
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	login := httpmiddleware.NewTokenBucket(o.LoginLimitPerMin, o.LoginLimitPerMin)
	authRoutes := r.Group("/v1/auth")
	authRoutes.POST("/login", login.Middleware(httpmiddleware.ByClientIP), h.Login)
	authRoutes.POST("/refresh", h.Refresh)

	v1 := r.Group("/v1", auth.Bearer(o.Tokens.SigningKey, o.Tokens.Issuer))

	student := v1.Group("", auth.RequireRole(auth.RoleStudent))
	student.GET("/me/attendance", h.MyAttendance)
	if o.Checkins != nil {
		student.GET("/checkin/ws", o.Checkins.Serve)
	}

	staff := v1.Group("", auth.RequireRole(auth.RoleFaculty, auth.RoleAdmin))
	staff.GET("/attendance", h.ListAttendance)
	staff.PUT("/attendance/:id/status", h.SetAttendanceStatus)
	staff.GET("/analytics", h.Analytics)
	if o.Dashboard != nil {
		staff.GET("/dashboard/ws", o.Dashboard.Serve)
	}

	admin := v1.Group("/students", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.ListStudents)
	admin.POST("", h.AddStudent)
	admin.PUT("/:id", h.UpdateStudent)
	admin.DELETE("/:id", h.DeleteStudent)

	return r
}

func corsConfig(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
