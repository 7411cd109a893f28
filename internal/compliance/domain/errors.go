package domain

import "errors"

var (
	ErrInvalidFormType        = errors.New("invalid_form_type")
	ErrInvalidClassification  = errors.New("invalid_tax_classification")
	ErrMissingLegalName       = errors.New("missing_legal_name")
	ErrMissingSignature       = errors.New("missing_signature")
	ErrInvalidTINType         = errors.New("invalid_tin_type")
	ErrNotFound               = errors.New("not_found")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrInvalidDecision        = errors.New("invalid_decision")
	ErrMissingReviewer        = errors.New("missing_reviewer")
)
