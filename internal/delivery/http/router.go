package http

import (
	"html/template"
	"time"

	"fiction-server/internal/delivery/http/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// RouterConfig - параметры сборки gin-роутера.
type RouterConfig struct {
	AllowedOrigins []string
	// Templates используются, если TemplateGlob пуст.
	Templates *template.Template
	// TemplateGlob включает загрузку шаблонов с диска (режим отладки).
	TemplateGlob string
	// Metrics - сборщик метрик запросов, nil отключает /metrics.
	Metrics *ginprometheus.Prometheus
}

// NewRouter собирает gin.Engine с логированием, восстановлением после паник, CORS, метриками и маршрутами историй.
func NewRouter(handler *StoryHandler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.ZapLogger(logger.Named("HTTP")))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || containsWildcard(cfg.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	if cfg.TemplateGlob != "" {
		router.LoadHTMLGlob(cfg.TemplateGlob)
	} else if cfg.Templates != nil {
		router.SetHTMLTemplate(cfg.Templates)
	}

	// Middleware gin применяется только к маршрутам, зарегистрированным после Use,
	// поэтому метрики подключаются до маршрутов историй
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.HandlerFunc())
		cfg.Metrics.SetMetricsPath(router)
	}

	handler.RegisterRoutes(router)
	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
