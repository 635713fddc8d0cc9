package companyrepo

import "errors"

var (
	// ErrNotFound indicates the requested company does not exist.
	ErrNotFound = errors.New("company not found")

	// ErrCNPJTaken indicates another company already registered the CNPJ.
	ErrCNPJTaken = errors.New("company cnpj already registered")

	// ErrAlreadyExists indicates a company already exists with the provided ID.
	ErrAlreadyExists = errors.New("company already exists")
)
