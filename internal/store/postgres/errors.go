package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/i474232898/contact-manager/internal/contacts"
)

// Constraint names from migrations/00001_init.sql.
const (
	constraintPhoneUnique  = "contacts_phone_number_key"
	constraintEmailUnique  = "contacts_email_key"
	constraintStatusUnique = "contact_statuses_name_key"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// mapError converts pgx errors into contacts errors. Context errors pass through.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return contacts.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintPhoneUnique:
				return contacts.NewValidationError("phone_number", contacts.MsgDuplicatePhone)
			case constraintEmailUnique:
				return contacts.NewValidationError("email", contacts.MsgDuplicateEmail)
			case constraintStatusUnique:
				return contacts.NewValidationError("name", contacts.MsgDuplicateStatus)
			}
			return contacts.NewValidationError("non_field_errors", pgErr.Message)
		case codeForeignKeyViolation:
			return contacts.NewValidationError("status", "Referenced status does not exist.")
		case codeCheckViolation:
			return contacts.NewValidationError("non_field_errors", pgErr.Message)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
