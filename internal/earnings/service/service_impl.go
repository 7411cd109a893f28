package service

import (
	"context"
	"strings"
	"time"

	"github.com/bidworks/clearhouse/internal/earnings/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("earnings.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) ComputeYTD(ctx context.Context, ref payee.Ref, year int) (domain.Snapshot, error) {
	if ref.IsZero() {
		return domain.Snapshot{}, payee.ErrInvalidPayee
	}
	if year < 2000 || year > 9999 {
		return domain.Snapshot{}, domain.ErrInvalidYear
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	total, err := s.repo.SumFinalized(ctx, s.db, ref, from, to)
	if err != nil {
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{Payee: ref, Year: year, Total: total}, nil
}

func (s *Service) RecordEntry(ctx context.Context, entry domain.SettlementEntry) (domain.SettlementEntry, error) {
	ref := payee.Ref{Type: entry.PayeeType, ID: entry.PayeeID}
	if ref.IsZero() {
		return domain.SettlementEntry{}, payee.ErrInvalidPayee
	}
	if entry.EventID == 0 {
		return domain.SettlementEntry{}, domain.ErrInvalidEvent
	}
	if entry.GrossAmount <= 0 {
		return domain.SettlementEntry{}, domain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	entry.ID = s.genID.Generate()
	entry.CreatedAt = now
	if currency := strings.ToUpper(strings.TrimSpace(entry.Currency)); currency != "" {
		entry.Currency = currency
	} else {
		entry.Currency = "USD"
	}
	if entry.Finalized && entry.FinalizedAt == nil {
		entry.FinalizedAt = &now
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Marketplace retries replay the same event. Return the entry
			// already on file so the replay never double-counts earnings.
			existing, findErr := s.repo.FindByEventID(ctx, s.db, entry.EventID)
			if findErr != nil {
				return domain.SettlementEntry{}, findErr
			}
			s.log.Debug("duplicate settlement event ignored",
				zap.Int64("event_id", int64(entry.EventID)),
			)
			return existing, nil
		}
		return domain.SettlementEntry{}, err
	}
	return entry, nil
}
