package userrepo

import "errors"

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken indicates another user already registered the email.
	ErrEmailTaken = errors.New("user email already registered")

	// ErrCPFTaken indicates another user already registered the CPF.
	ErrCPFTaken = errors.New("user cpf already registered")

	// ErrAlreadyExists indicates a user already exists with the provided ID.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrHasTickets indicates Delete was refused because tickets reference the user.
	ErrHasTickets = errors.New("user has tickets")

	// ErrOwnsCompanies indicates Delete was refused because the user owns companies.
	ErrOwnsCompanies = errors.New("user owns companies")
)
