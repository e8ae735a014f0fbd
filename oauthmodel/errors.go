package oauthmodel

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
)

var (
	ErrMissingUsername = fmt.Errorf("%w: username is required", apperrors.ErrValidation)
	ErrMissingPassword = fmt.Errorf("%w: password is required", apperrors.ErrValidation)
	ErrInvalidEmail    = fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	ErrInvalidRole     = fmt.Errorf("%w: unsupported role", apperrors.ErrValidation)
)
