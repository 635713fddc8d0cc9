package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnibus-tickets/omnibus-api/internal/app/documents"
	"github.com/omnibus-tickets/omnibus-api/internal/app/users"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// multipartOverhead is the slack allowed above documents.MaxSize for form boundaries and fields.
const multipartOverhead = 1 << 20

func (s *Server) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	u, err := s.Users.GetMe(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userFromDomain(u), "role": string(p.Role)})
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	us, err := s.Users.List(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]User, 0, len(us))
	for _, u := range us {
		out = append(out, userFromDomain(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	u, err := s.Users.Get(r.Context(), p, domain.UserID(chi.URLParam(r, "userId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userFromDomain(u)})
}

func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	u, err := s.Users.Update(r.Context(), p, domain.UserID(chi.URLParam(r, "userId")), users.UpdateInput{
		Name:     optionalFromNullable(req.Name),
		Email:    optionalFromNullable(req.Email),
		Password: optionalFromNullable(req.Password),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userFromDomain(u)})
}

func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if err := s.Users.Delete(r.Context(), p, domain.UserID(chi.URLParam(r, "userId"))); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument accepts multipart/form-data with a `type` field and a `file` part.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if r.ContentLength > documents.MaxSize+multipartOverhead {
		writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file too large", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, documents.MaxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file too large", nil)
			return
		}
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "expected multipart/form-data", map[string]any{"body": err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid document", map[string]any{"file": "is required"})
		return
	}
	defer file.Close()

	d, err := s.Documents.Upload(r.Context(), p, domain.UserID(chi.URLParam(r, "userId")), documents.UploadInput{
		Type:        r.FormValue("type"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": documentFromDomain(d)})
}

func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	v, err := s.Documents.Get(r.Context(), p, domain.UserID(chi.URLParam(r, "userId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": documentFromView(v)})
}
