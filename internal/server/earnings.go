package server

import (
	"net/http"
	"strconv"
	"strings"

	earningsdomain "github.com/bidworks/clearhouse/internal/earnings/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/gin-gonic/gin"
)

type recordSettlementEntryRequest struct {
	PayeeType   string `json:"payee_type"`
	PayeeID     string `json:"payee_id"`
	EventID     string `json:"event_id"`
	GrossAmount int64  `json:"gross_amount"`
	Currency    string `json:"currency"`
	Finalized   bool   `json:"finalized"`
}

func (s *Server) RecordSettlementEntry(c *gin.Context) {
	var req recordSettlementEntryRequest
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

	entry, err := s.earningsSvc.RecordEntry(c.Request.Context(), earningsdomain.SettlementEntry{
		PayeeType:   ref.Type,
		PayeeID:     ref.ID,
		EventID:     eventID,
		GrossAmount: req.GrossAmount,
		Currency:    req.Currency,
		Finalized:   req.Finalized,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (s *Server) GetEarnings(c *gin.Context) {
	ref, err := payeeFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
		return
	}

	snapshot, err := s.earningsSvc.ComputeYTD(c.Request.Context(), ref, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}
