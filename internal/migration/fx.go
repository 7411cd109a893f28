package migration

import (
	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	compliancedomain "github.com/bidworks/clearhouse/internal/compliance/domain"
	"github.com/bidworks/clearhouse/internal/config"
	earningsdomain "github.com/bidworks/clearhouse/internal/earnings/domain"
	payoutdomain "github.com/bidworks/clearhouse/internal/payout/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned migrations target postgres. Other drivers (sqlite
			// in dev, mysql) get the schema from the model definitions.
			return conn.AutoMigrate(
				&compliancedomain.TaxRecord{},
				&compliancedomain.ComplianceState{},
				&auditdomain.AuditEvent{},
				&earningsdomain.SettlementEntry{},
				&payoutdomain.PayoutRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
