package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/pkg/db/pagination"
)

// AppendRequest captures one event to record. Callers never hand it a raw
// TIN; the service still masks known sensitive metadata keys before persist.
type AppendRequest struct {
	Actor     ActorType
	ActorID   *string
	Subject   payee.Ref
	EventType EventType
	Purpose   string
	IPAddress string
	Metadata  map[string]any
}

type ListEventsRequest struct {
	pagination.Pagination
	Subject   payee.Ref
	EventType string
	StartAt   *time.Time
	EndAt     *time.Time
}

type ListEventsResponse struct {
	pagination.PageInfo
	Events []AuditEvent `json:"audit_events"`
}

// Service is the append-only audit trail. A failed Append is always fatal
// to the operation that requested it.
type Service interface {
	Append(ctx context.Context, req AppendRequest) error
	List(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error)
}

var (
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidSubject   = errors.New("invalid_subject")
	ErrMissingPurpose   = errors.New("missing_purpose")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
