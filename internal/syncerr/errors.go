// ABOUTME: Error taxonomy for account synchronization
// ABOUTME: Credential failures stay distinguishable through account wrapping

package syncerr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrURLNotFound          = errors.New("url not found")
	ErrFeedNotFound         = errors.New("feed not found")
	ErrAlreadySubscribed    = errors.New("already subscribed")
	ErrOPMLImportInProgress = errors.New("opml import already in progress")
	ErrNotSupported         = errors.New("operation not supported by this account")
	ErrAccountNotFound      = errors.New("account not found")
	ErrRefreshInProgress    = errors.New("refresh in progress")
	ErrOffline              = errors.New("network unavailable")
)

// CredentialsError reports a rejected login or token.
type CredentialsError struct {
	StatusCode int
	Message    string
}

func (e *CredentialsError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("credentials rejected (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("credentials rejected (%d)", e.StatusCode)
}

// FromStatus maps an HTTP status to a taxonomy error, or nil for success codes.
func FromStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &CredentialsError{StatusCode: code}
	case code == http.StatusNotFound:
		return ErrURLNotFound
	case code == http.StatusConflict:
		return ErrAlreadySubscribed
	case code >= 200 && code < 300:
		return nil
	default:
		return fmt.Errorf("%w: status %d", ErrInvalidResponse, code)
	}
}

// IsCredentials reports whether err is, or wraps, a CredentialsError.
func IsCredentials(err error) bool {
	var ce *CredentialsError
	return errors.As(err, &ce)
}

// AccountError attributes a backend failure to an account.
type AccountError struct {
	AccountID   string
	AccountName string
	Err         error
}

// Wrap attributes err to the account. It returns nil for a nil err and does
// not double-wrap.
func Wrap(err error, accountID, accountName string) error {
	if err == nil {
		return nil
	}
	var ae *AccountError
	if errors.As(err, &ae) {
		return err
	}
	return &AccountError{AccountID: accountID, AccountName: accountName, Err: err}
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("%s: %v", e.AccountName, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}
