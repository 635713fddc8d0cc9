package domain

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionRead   AuditAction = "READ"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// AuditSystemUser is recorded when a mutation happens outside an authenticated request.
const AuditSystemUser = "system"

type AuditEntry struct {
	ID         AuditEntryID
	EntityName string
	EntityID   string
	Action     AuditAction
	Username   string
	Details    string
	CreatedAt  time.Time
}
