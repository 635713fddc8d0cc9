package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/omnibus-tickets/omnibus-api/internal/app/documents"
	"github.com/omnibus-tickets/omnibus-api/internal/app/optional"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/tokens"
)

type RegisterRequest struct {
	Name     string              `json:"name"`
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
	CPF      string              `json:"cpf"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type UpdateUserRequest struct {
	Name     nullable.Nullable[string] `json:"name,omitempty"`
	Email    nullable.Nullable[string] `json:"email,omitempty"`
	Password nullable.Nullable[string] `json:"password,omitempty"`
}

type CreateCompanyRequest struct {
	OwnerId   string `json:"ownerId,omitempty"`
	CNPJ      string `json:"cnpj"`
	TradeName string `json:"tradeName"`
	LegalName string `json:"legalName"`
}

type UpdateCompanyRequest struct {
	TradeName nullable.Nullable[string] `json:"tradeName,omitempty"`
	LegalName nullable.Nullable[string] `json:"legalName,omitempty"`
}

type CreateTripRequest struct {
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartureAt     time.Time `json:"departureAt"`
	PriceCents      int64     `json:"priceCents"`
	SeatsTotal      int       `json:"seatsTotal"`
	AssignedSeating bool      `json:"assignedSeating"`
}

type UpdateTripRequest struct {
	Origin          nullable.Nullable[string]    `json:"origin,omitempty"`
	Destination     nullable.Nullable[string]    `json:"destination,omitempty"`
	DepartureAt     nullable.Nullable[time.Time] `json:"departureAt,omitempty"`
	PriceCents      nullable.Nullable[int64]     `json:"priceCents,omitempty"`
	SeatsTotal      nullable.Nullable[int]       `json:"seatsTotal,omitempty"`
	AssignedSeating nullable.Nullable[bool]      `json:"assignedSeating,omitempty"`
}

type PurchaseTicketRequest struct {
	Seat *int `json:"seat,omitempty"`
}

type User struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CPF       string    `json:"cpf"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Credential struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Company struct {
	Id        string    `json:"id"`
	OwnerId   string    `json:"ownerId"`
	CNPJ      string    `json:"cnpj"`
	TradeName string    `json:"tradeName"`
	LegalName string    `json:"legalName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Trip struct {
	Id              string    `json:"id"`
	CompanyId       string    `json:"companyId"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartureAt     time.Time `json:"departureAt"`
	PriceCents      int64     `json:"priceCents"`
	SeatsTotal      int       `json:"seatsTotal"`
	SeatsAvailable  int       `json:"seatsAvailable"`
	AssignedSeating bool      `json:"assignedSeating"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Ticket struct {
	Id              string    `json:"id"`
	TripId          string    `json:"tripId"`
	PassengerId     string    `json:"passengerId"`
	Status          string    `json:"status"`
	Seat            *int      `json:"seat,omitempty"`
	AmountPaidCents int64     `json:"amountPaidCents"`
	PurchasedAt     time.Time `json:"purchasedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Document struct {
	Id           string                       `json:"id"`
	UserId       string                       `json:"userId"`
	Type         string                       `json:"type"`
	ContentType  string                       `json:"contentType"`
	SizeBytes    int64                        `json:"sizeBytes"`
	Validated    bool                         `json:"validated"`
	UploadedAt   time.Time                    `json:"uploadedAt"`
	DownloadUrl  nullable.Nullable[string]    `json:"downloadUrl,omitempty"`
	UrlExpiresAt nullable.Nullable[time.Time] `json:"urlExpiresAt,omitempty"`
}

type AuditEntry struct {
	Id         string    `json:"id"`
	EntityName string    `json:"entityName"`
	EntityId   string    `json:"entityId"`
	Action     string    `json:"action"`
	Username   string    `json:"username"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func userFromDomain(u domain.User) User {
	return User{
		Id:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CPF:       u.CPF,
		Roles:     u.Roles.Strings(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func credentialFromTokens(c tokens.Credential) Credential {
	return Credential{
		Token:     c.Token,
		TokenType: "Bearer",
		Role:      string(c.Role),
		ExpiresAt: c.ExpiresAt,
	}
}

func companyFromDomain(c domain.Company) Company {
	return Company{
		Id:        string(c.ID),
		OwnerId:   string(c.OwnerID),
		CNPJ:      c.CNPJ,
		TradeName: c.TradeName,
		LegalName: c.LegalName,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func tripFromDomain(t domain.Trip) Trip {
	return Trip{
		Id:              string(t.ID),
		CompanyId:       string(t.CompanyID),
		Origin:          t.Origin,
		Destination:     t.Destination,
		DepartureAt:     t.DepartureAt,
		PriceCents:      t.PriceCents,
		SeatsTotal:      t.SeatsTotal,
		SeatsAvailable:  t.SeatsAvailable,
		AssignedSeating: t.AssignedSeating,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func ticketFromDomain(t domain.Ticket) Ticket {
	return Ticket{
		Id:              string(t.ID),
		TripId:          string(t.TripID),
		PassengerId:     string(t.PassengerID),
		Status:          string(t.Status),
		Seat:            t.Seat,
		AmountPaidCents: t.AmountPaidCents,
		PurchasedAt:     t.PurchasedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func documentFromDomain(d domain.Document) Document {
	return Document{
		Id:          string(d.ID),
		UserId:      string(d.UserID),
		Type:        string(d.Type),
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		Validated:   d.Validated,
		UploadedAt:  d.UploadedAt,
	}
}

func documentFromView(v documents.View) Document {
	out := documentFromDomain(v.Document)
	out.DownloadUrl = nullable.NewNullableWithValue(v.DownloadURL)
	out.UrlExpiresAt = nullable.NewNullableWithValue(v.URLExpiresAt)
	return out
}

func auditEntryFromDomain(e domain.AuditEntry) AuditEntry {
	return AuditEntry{
		Id:         string(e.ID),
		EntityName: e.EntityName,
		EntityId:   e.EntityID,
		Action:     string(e.Action),
		Username:   e.Username,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
	}
}

// optionalFromNullable converts a decoded PATCH field into the service-level tri-state.
func optionalFromNullable[T any](n nullable.Nullable[T]) optional.Value[T] {
	switch {
	case !n.IsSpecified():
		return optional.Unspecified[T]()
	case n.IsNull():
		return optional.Null[T]()
	default:
		return optional.Some(n.MustGet())
	}
}
