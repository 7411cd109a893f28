package server

import (
	"net/http"
	"strings"

	"github.com/bidworks/clearhouse/internal/payee"
	payoutdomain "github.com/bidworks/clearhouse/internal/payout/domain"
	"github.com/gin-gonic/gin"
)

type initiatePayoutRequest struct {
	PayeeType   string `json:"payee_type"`
	PayeeID     string `json:"payee_id"`
	EventID     string `json:"event_id"`
	GrossAmount int64  `json:"gross_amount"`
}

func (s *Server) InitiatePayout(c *gin.Context) {
	var req initiatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ref, err := payee.ParseRef(req.PayeeType, req.PayeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	eventID, err := parseID(req.EventID)
	if err != nil {
		AbortWithError(c, newValidationError("event_id", "invalid_event", "invalid event_id"))
		return
	}

	record, err := s.payoutSvc.Initiate(c.Request.Context(), ref, eventID, req.GrossAmount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": record})
}

func (s *Server) GetPayoutByID(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	record, err := s.payoutSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

type resolvePayoutRequest struct {
	Reviewer   string `json:"reviewer"`
	Resolution string `json:"resolution"`
}

func (s *Server) ResolvePayoutHold(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req resolvePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resolution := payoutdomain.HoldResolution(strings.ToLower(strings.TrimSpace(req.Resolution)))
	record, err := s.payoutSvc.ResolveHold(c.Request.Context(), id, strings.TrimSpace(req.Reviewer), resolution)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) FlagPayoutChargeback(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	if err := s.payoutSvc.FlagChargeback(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ReleasePayoutReserve(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	if err := s.payoutSvc.ReleaseReserve(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
