package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crm_configurator_v1/internal/controller"
	"crm_configurator_v1/internal/middleware"
)

// Options 路由依赖
type Options struct {
	Configurator *controller.ConfiguratorController
	Auth         *middleware.Authenticator
	Throttle     *middleware.Throttle
}

// SetupRouter 创建 gin 引擎并注册所有路由
func SetupRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	InitRoutes(r, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, opts Options) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	if opts.Auth != nil {
		api.Use(opts.Auth.Middleware(), middleware.AuditContext())
	}

	ctl := opts.Configurator
	cfg := api.Group("/configurator")
	{
		sessions := cfg.Group("/sessions")
		{
			// POST /api/configurator/sessions
			sessions.POST("", ctl.OpenSession)
			sessions.GET("/:id", ctl.GetSession)
			sessions.GET("/:id/payload", ctl.PreviewPayload)
			sessions.DELETE("/:id", ctl.CloseSession)

			products := sessions.Group("/:id/products/:tmpl_id")
			{
				products.POST("/add", ctl.AddProduct)
				products.POST("/remove", ctl.RemoveProduct)
				products.PUT("/quantity", ctl.SetQuantity)

				lines := products.Group("/lines/:line_id")
				{
					lines.POST("/select", ctl.SelectValue)
					lines.PUT("/custom", ctl.SetCustomValue)
					lines.PUT("/file", ctl.AttachFile)
					lines.DELETE("/file", ctl.ClearFile)
					lines.PUT("/reference", ctl.AttachReference)
					lines.DELETE("/reference", ctl.ClearReference)
				}
			}

			// 提交按会话限流
			confirm := []gin.HandlerFunc{ctl.Confirm}
			if opts.Throttle != nil {
				confirm = append([]gin.HandlerFunc{middleware.ConfirmThrottle(opts.Throttle, "id")}, confirm...)
			}
			sessions.POST("/:id/confirm", confirm...)
		}

		// GET /api/configurator/submissions?correlation_id=
		cfg.GET("/submissions", ctl.ListSubmissions)
		cfg.GET("/submissions/stats", ctl.SubmissionStats)
	}
}
