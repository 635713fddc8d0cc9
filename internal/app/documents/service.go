// Package documents stores passenger identity documents in the object store.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/documentrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/objectstore"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

// MaxSize is the largest accepted upload.
const MaxSize int64 = 10 << 20

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

var whitespace = regexp.MustCompile(`\s+`)

type UploadInput struct {
	Type        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// View is a document plus a short-lived download link.
type View struct {
	domain.Document
	DownloadURL  string
	URLExpiresAt time.Time
}

type Service struct {
	docs       documentrepo.Repository
	users      userrepo.Repository
	store      objectstore.Store
	presignTTL time.Duration
	clk        clockport.Clock
	audit      *audit.Logger
	log        *zap.Logger

	newID func() string
}

func NewService(docs documentrepo.Repository, users userrepo.Repository, store objectstore.Store, presignTTL time.Duration, clk clockport.Clock, auditLog *audit.Logger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		docs:       docs,
		users:      users,
		store:      store,
		presignTTL: presignTTL,
		clk:        clk,
		audit:      auditLog,
		log:        log,
		newID:      uuid.NewString,
	}
}

// Upload stores the file and replaces the user's previous document record.
// The previous object is left in the bucket.
func (s *Service) Upload(ctx context.Context, p domain.Principal, userID domain.UserID, in UploadInput) (domain.Document, error) {
	if err := s.checkUser(ctx, p, userID); err != nil {
		return domain.Document{}, err
	}

	if in.Size > MaxSize {
		return domain.Document{}, &apperr.Error{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("Files must be at most %d MiB.", MaxSize>>20),
		}
	}
	details := map[string]any{}
	typ, ok := domain.ParseDocumentType(in.Type)
	if !ok {
		details["type"] = "must be one of RG, CNH, PASSPORT"
	}
	if in.Size <= 0 || in.Body == nil {
		details["file"] = "must not be empty"
	}
	contentType := normalizeContentType(in.ContentType)
	if !allowedContentTypes[contentType] {
		details["contentType"] = "must be application/pdf, image/jpeg or image/png"
	}
	if len(details) > 0 {
		return domain.Document{}, apperr.Validation("invalid document", details)
	}

	key := objectKey(userID, typ, s.newID(), in.Filename)
	if err := s.store.EnsureBucket(ctx); err != nil {
		return domain.Document{}, s.storageError("ensure bucket", err)
	}
	if err := s.store.Put(ctx, key, in.Body, in.Size, contentType); err != nil {
		return domain.Document{}, s.storageError("put object", err)
	}

	d := documentrepo.Document{
		ID:          domain.DocumentID(s.newID()),
		UserID:      userID,
		Type:        typ,
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   in.Size,
		UploadedAt:  s.clk.Now(),
	}
	if err := s.docs.Upsert(ctx, d); err != nil {
		return domain.Document{}, err
	}
	s.audit.Log(ctx, "Document", string(d.ID), domain.AuditActionCreate, fmt.Sprintf("user=%s type=%s", userID, typ))
	return toDomain(d), nil
}

func (s *Service) Get(ctx context.Context, p domain.Principal, userID domain.UserID) (View, error) {
	if err := s.checkUser(ctx, p, userID); err != nil {
		return View{}, err
	}
	d, err := s.docs.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, documentrepo.ErrNotFound) {
			return View{}, apperr.NotFound("DOCUMENT_NOT_FOUND", "The user has no document on file.")
		}
		return View{}, err
	}
	url, err := s.store.PresignGet(ctx, d.ObjectKey, s.presignTTL)
	if err != nil {
		return View{}, s.storageError("presign", err)
	}
	s.audit.Log(ctx, "Document", string(d.ID), domain.AuditActionRead, "")
	return View{
		Document:     toDomain(d),
		DownloadURL:  url,
		URLExpiresAt: s.clk.Now().Add(s.presignTTL),
	}, nil
}

func (s *Service) checkUser(ctx context.Context, p domain.Principal, id domain.UserID) error {
	if !p.CanAccessUser(id) {
		return apperr.NotFound("USER_NOT_FOUND", "User not found.")
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return apperr.NotFound("USER_NOT_FOUND", "User not found.")
		}
		return err
	}
	return nil
}

func (s *Service) storageError(op string, err error) *apperr.Error {
	s.log.Error("object store", zap.String("op", op), zap.Error(err))
	return &apperr.Error{
		Status:  http.StatusInternalServerError,
		Code:    "STORAGE_ERROR",
		Message: "The document could not be stored. Try again later.",
	}
}

// objectKey builds users/{id}/{type}/{uuid}-{name}. Whitespace runs in the name become one underscore.
func objectKey(userID domain.UserID, typ domain.DocumentType, id, filename string) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(filename, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	name = whitespace.ReplaceAllString(name, "_")
	return fmt.Sprintf("users/%s/%s/%s-%s", userID, strings.ToLower(string(typ)), id, name)
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func toDomain(d documentrepo.Document) domain.Document {
	return domain.Document{
		ID:          d.ID,
		UserID:      d.UserID,
		Type:        d.Type,
		ObjectKey:   d.ObjectKey,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		Validated:   d.Validated,
		UploadedAt:  d.UploadedAt,
	}
}
