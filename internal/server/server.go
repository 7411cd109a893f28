package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bidworks/clearhouse/internal/audit"
	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	"github.com/bidworks/clearhouse/internal/compliance"
	compliancedomain "github.com/bidworks/clearhouse/internal/compliance/domain"
	"github.com/bidworks/clearhouse/internal/config"
	"github.com/bidworks/clearhouse/internal/earnings"
	earningsdomain "github.com/bidworks/clearhouse/internal/earnings/domain"
	"github.com/bidworks/clearhouse/internal/gate"
	obslogger "github.com/bidworks/clearhouse/internal/observability/logger"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/payout"
	payoutdomain "github.com/bidworks/clearhouse/internal/payout/domain"
	"github.com/bidworks/clearhouse/internal/providers/notify"
	"github.com/bidworks/clearhouse/internal/providers/transfer"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	payee.Module,
	audit.Module,
	tinvault.Module,
	compliance.Module,
	earnings.Module,
	gate.Module,
	payout.Module,
	notify.Module,
	transfer.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           cfg.Environment != "production",
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config) *gin.Engine {
	return NewEngine(cfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	auditSvc      auditdomain.Service
	complianceSvc compliancedomain.Service
	earningsSvc   earningsdomain.Service
	payoutSvc     payoutdomain.Service
	gate          *gate.Gate
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	AuditSvc      auditdomain.Service
	ComplianceSvc compliancedomain.Service
	EarningsSvc   earningsdomain.Service
	PayoutSvc     payoutdomain.Service
	Gate          *gate.Gate
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		auditSvc:      p.AuditSvc,
		complianceSvc: p.ComplianceSvc,
		earningsSvc:   p.EarningsSvc,
		payoutSvc:     p.PayoutSvc,
		gate:          p.Gate,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Tax forms --------
	v1.POST("/tax-forms", s.SubmitTaxForm)
	v1.POST("/tax-forms/:id/verify", s.VerifyTaxForm)
	v1.POST("/tax-forms/:id/tin", s.DecryptTIN)

	// -------- Compliance --------
	v1.GET("/payees/:type/:id/compliance", s.GetComplianceStatus)
	v1.GET("/payees/:type/:id/gate", s.EvaluateGate)

	// -------- Earnings --------
	v1.POST("/settlement-entries", s.RecordSettlementEntry)
	v1.GET("/payees/:type/:id/earnings", s.GetEarnings)

	// -------- Payouts --------
	v1.POST("/payouts", s.InitiatePayout)
	v1.GET("/payouts/:id", s.GetPayoutByID)
	v1.POST("/payouts/:id/resolve", s.ResolvePayoutHold)
	v1.POST("/payouts/:id/chargeback", s.FlagPayoutChargeback)
	v1.POST("/payouts/:id/release-reserve", s.ReleasePayoutReserve)

	// -------- Audit trail --------
	v1.GET("/audit-events", s.ListAuditEvents)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, ErrInvalidRequest
	}
	return id, nil
}

func payeeFromPath(c *gin.Context) (payee.Ref, error) {
	return payee.ParseRef(c.Param("type"), c.Param("id"))
}
