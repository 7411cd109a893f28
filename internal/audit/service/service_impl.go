package service

import (
	"strings"
	"time"

	"context"

	"github.com/bidworks/clearhouse/internal/audit/domain"
	"github.com/bidworks/clearhouse/internal/audit/masking"
	obsmetrics "github.com/bidworks/clearhouse/internal/observability/metrics"
	"github.com/bidworks/clearhouse/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("audit.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Append(ctx context.Context, req domain.AppendRequest) error {
	if !req.EventType.Valid() {
		return domain.ErrInvalidEventType
	}
	if req.Subject.IsZero() {
		return domain.ErrInvalidSubject
	}

	purpose := strings.TrimSpace(req.Purpose)
	if req.EventType == domain.EventTypeTINDecrypted && purpose == "" {
		return domain.ErrMissingPurpose
	}

	actorType := req.Actor
	if actorType == "" {
		actorType = domain.ActorTypeSystem
	}

	event := domain.AuditEvent{
		ID:          s.genID.Generate(),
		ActorType:   actorType,
		ActorID:     normalizePointer(req.ActorID),
		SubjectType: string(req.Subject.Type),
		SubjectID:   req.Subject.ID,
		EventType:   req.EventType,
		Metadata:    datatypes.JSONMap(masking.MaskJSON(req.Metadata)),
		CreatedAt:   time.Now().UTC(),
	}
	if purpose != "" {
		event.Purpose = &purpose
	}
	if ip := strings.TrimSpace(req.IPAddress); ip != "" {
		event.IPAddress = &ip
	}
	if event.Metadata == nil {
		event.Metadata = datatypes.JSONMap{}
	}

	if err := s.repo.Insert(ctx, s.db, &event); err != nil {
		s.obsMetrics.IncAuditWriteError()
		s.log.Error("failed to write audit event",
			zap.String("event_type", string(req.EventType)),
			zap.String("subject", req.Subject.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListEventsRequest) (domain.ListEventsResponse, error) {
	if req.Subject.IsZero() {
		return domain.ListEventsResponse{}, domain.ErrInvalidSubject
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return domain.ListEventsResponse{}, domain.ErrInvalidTimeRange
	}

	var cursor *domain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListEventsResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListEventsResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListEventsResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		SubjectType: string(req.Subject.Type),
		SubjectID:   req.Subject.ID,
		EventType:   req.EventType,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Cursor:      cursor,
		Limit:       pageSize,
	})
	if err != nil {
		return domain.ListEventsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *domain.AuditEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	events := make([]domain.AuditEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	resp := domain.ListEventsResponse{Events: events}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
