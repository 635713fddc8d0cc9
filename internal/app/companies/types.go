package companies

import (
	"github.com/omnibus-tickets/omnibus-api/internal/app/optional"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

type CreateInput struct {
	// OwnerID defaults to the caller. Only administrators may register a company for someone else.
	OwnerID   domain.UserID
	CNPJ      string
	TradeName string
	LegalName string
}

// UpdateInput patches a company. The CNPJ and owner are immutable.
type UpdateInput struct {
	TradeName optional.Value[string]
	LegalName optional.Value[string]
}
