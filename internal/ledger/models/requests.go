package models

import (
	"net/mail"
	"strings"
	"time"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type CreateShareholderRequest struct {
	Type       ShareholderType   `json:"type"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	EntityName string            `json:"entity_name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Status     ShareholderStatus `json:"status"`
	Notes      string            `json:"notes"`
}

func (r *CreateShareholderRequest) Normalize() {
	if r == nil {
		return
	}
	r.Type = ShareholderType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.EntityName = strings.TrimSpace(r.EntityName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Notes = strings.TrimSpace(r.Notes)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *CreateShareholderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.FirstName) > 128 || len(r.LastName) > 128 || len(r.EntityName) > 256 {
		return dErrors.New(dErrors.CodeValidation, "name fields are too long")
	}
	if len(r.Notes) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "notes must be 2000 characters or less")
	}
	if r.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "type is required")
	}
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be INDIVIDUAL or ENTITY")
	}
	if r.Status != "" && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is invalid")
		}
	}
	return nil
}

type UpdateShareholderRequest struct {
	Type       *ShareholderType   `json:"type"`
	FirstName  *string            `json:"first_name"`
	LastName   *string            `json:"last_name"`
	EntityName *string            `json:"entity_name"`
	Email      *string            `json:"email"`
	Phone      *string            `json:"phone"`
	Status     *ShareholderStatus `json:"status"`
	Notes      *string            `json:"notes"`
}

func (r *UpdateShareholderRequest) Normalize() {
	if r == nil {
		return
	}
	for _, f := range []*string{r.FirstName, r.LastName, r.EntityName, r.Email, r.Phone, r.Notes} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if r.Type != nil {
		t := ShareholderType(strings.ToUpper(strings.TrimSpace(string(*r.Type))))
		r.Type = &t
	}
}

func (r *UpdateShareholderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Type != nil && !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be INDIVIDUAL or ENTITY")
	}
	if r.Status != nil && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	if r.Email != nil && *r.Email != "" {
		if _, err := mail.ParseAddress(*r.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is invalid")
		}
	}
	return nil
}

type CreateLotRequest struct {
	OwnerID           id.ShareholderID `json:"owner_id"`
	Shares            int64            `json:"shares"`
	Status            LotStatus        `json:"status"`
	CertificateNumber string           `json:"certificate_number"`
	AcquiredDate      *time.Time       `json:"acquired_date"`
	Source            string           `json:"source"`
	Notes             string           `json:"notes"`
}

func (r *CreateLotRequest) Normalize() {
	if r == nil {
		return
	}
	r.CertificateNumber = strings.TrimSpace(r.CertificateNumber)
	r.Source = strings.TrimSpace(r.Source)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CreateLotRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.CertificateNumber) > 64 {
		return dErrors.New(dErrors.CodeValidation, "certificate number must be 64 characters or less")
	}
	if r.OwnerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner_id is required")
	}
	if r.Shares <= 0 {
		return dErrors.New(dErrors.CodeValidation, "shares must be a positive integer")
	}
	if r.Status != "" && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid lot status")
	}
	return nil
}

type UpdateLotRequest struct {
	OwnerID           *id.ShareholderID `json:"owner_id"`
	Shares            *int64            `json:"shares"`
	Status            *LotStatus        `json:"status"`
	CertificateNumber *string           `json:"certificate_number"`
	AcquiredDate      *time.Time        `json:"acquired_date"`
	Source            *string           `json:"source"`
	Notes             *string           `json:"notes"`
}

func (r *UpdateLotRequest) Normalize() {
	if r == nil {
		return
	}
	for _, f := range []*string{r.CertificateNumber, r.Source, r.Notes} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func (r *UpdateLotRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.CertificateNumber != nil && len(*r.CertificateNumber) > 64 {
		return dErrors.New(dErrors.CodeValidation, "certificate number must be 64 characters or less")
	}
	if r.OwnerID != nil && r.OwnerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner_id cannot be empty")
	}
	if r.Shares != nil && *r.Shares < 0 {
		return dErrors.New(dErrors.CodeValidation, "shares cannot be negative")
	}
	if r.Status != nil && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid lot status")
	}
	return nil
}
