package server

import (
	"net/http"
	"strings"
	"time"

	compliancedomain "github.com/bidworks/clearhouse/internal/compliance/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/gin-gonic/gin"
)

type submitTaxFormRequest struct {
	PayeeType         string                   `json:"payee_type"`
	PayeeID           string                   `json:"payee_id"`
	FormType          string                   `json:"form_type"`
	LegalName         string                   `json:"legal_name"`
	BusinessName      string                   `json:"business_name"`
	TaxClassification string                   `json:"tax_classification"`
	TINType           string                   `json:"tin_type"`
	TIN               string                   `json:"tin"`
	Address           compliancedomain.Address `json:"address"`
	IsUSPerson        *bool                    `json:"is_us_person"`
	IsExemptPayee     bool                     `json:"is_exempt_payee"`
	ExemptPayeeCode   string                   `json:"exempt_payee_code"`
	SignatureName     string                   `json:"signature_name"`
	SignatureDate     string                   `json:"signature_date"`
}

func (s *Server) SubmitTaxForm(c *gin.Context) {
	var req submitTaxFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ref, err := payee.ParseRef(req.PayeeType, req.PayeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var signatureDate time.Time
	if raw := strings.TrimSpace(req.SignatureDate); raw != "" {
		signatureDate, err = time.Parse("2006-01-02", raw)
		if err != nil {
			AbortWithError(c, newValidationError("signature_date", "invalid_signature_date", "invalid signature_date"))
			return
		}
	}

	record, err := s.complianceSvc.Submit(c.Request.Context(), compliancedomain.SubmitRequest{
		Payee:             ref,
		FormType:          compliancedomain.FormType(strings.ToLower(strings.TrimSpace(req.FormType))),
		LegalName:         req.LegalName,
		BusinessName:      req.BusinessName,
		TaxClassification: compliancedomain.TaxClassification(strings.ToLower(strings.TrimSpace(req.TaxClassification))),
		TINType:           tinvault.TINType(strings.ToLower(strings.TrimSpace(req.TINType))),
		TIN:               req.TIN,
		Address:           req.Address,
		IsUSPerson:        req.IsUSPerson,
		IsExemptPayee:     req.IsExemptPayee,
		ExemptPayeeCode:   req.ExemptPayeeCode,
		SignatureName:     req.SignatureName,
		SignatureDate:     signatureDate,
		IPAddress:         c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": record})
}

type verifyTaxFormRequest struct {
	Reviewer string `json:"reviewer"`
	Decision string `json:"decision"`
}

func (s *Server) VerifyTaxForm(c *gin.Context) {
	recordID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req verifyTaxFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	decision := compliancedomain.Decision(strings.ToLower(strings.TrimSpace(req.Decision)))
	if err := s.complianceSvc.Verify(c.Request.Context(), recordID, strings.TrimSpace(req.Reviewer), decision); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetComplianceStatus(c *gin.Context) {
	ref, err := payeeFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.complianceSvc.Status(c.Request.Context(), ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type decryptTINRequest struct {
	Reviewer string `json:"reviewer"`
}

// DecryptTIN is the sole plaintext path. The decryption is audited before
// the response is written; an unauditable request never returns a TIN.
func (s *Server) DecryptTIN(c *gin.Context) {
	recordID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req decryptTINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	reviewer := strings.TrimSpace(req.Reviewer)
	if reviewer == "" {
		AbortWithError(c, compliancedomain.ErrMissingReviewer)
		return
	}

	resp, err := s.complianceSvc.DecryptTINFor1099(c.Request.Context(), recordID, reviewer, c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EvaluateGate(c *gin.Context) {
	ref, err := payeeFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.gate.Evaluate(c.Request.Context(), ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": decision})
}
