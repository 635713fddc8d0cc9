package domain

// UserID identifies a registered identity. It is also the `sub` claim of issued credentials.
type UserID string

// CompanyID is an internal identifier for a company record.
type CompanyID string

// TripID is an internal identifier for a trip record.
type TripID string

// TicketID is an internal identifier for a ticket record.
type TicketID string

// DocumentID is an internal identifier for an uploaded identity document.
type DocumentID string

// AuditEntryID is an internal identifier for an audit log entry.
type AuditEntryID string
