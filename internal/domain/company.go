package domain

import "time"

// Company is a bus operator. Owning at least one company is what makes the COMPANY role usable.
type Company struct {
	ID        CompanyID
	OwnerID   UserID
	CNPJ      string
	TradeName string
	LegalName string

	CreatedAt time.Time
	UpdatedAt time.Time
}
