package domain

import (
	"strings"
	"time"
)

type DocumentType string

const (
	DocumentTypeRG       DocumentType = "RG"
	DocumentTypeCNH      DocumentType = "CNH"
	DocumentTypePassport DocumentType = "PASSPORT"
)

func ParseDocumentType(s string) (DocumentType, bool) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case DocumentTypeRG, DocumentTypeCNH, DocumentTypePassport:
		return t, true
	default:
		return "", false
	}
}

// Document is the metadata of an identity document stored in the object store.
// Each user has at most one.
type Document struct {
	ID          DocumentID
	UserID      UserID
	Type        DocumentType
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	Validated   bool
	UploadedAt  time.Time
}
