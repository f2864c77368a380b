package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Ownership errors
	ErrUserIDRequired          = errors.New("user id is required")
	ErrFacebookAccountNotFound = errors.New("facebook account not found")
	ErrCampaignNotFound        = errors.New("campaign not found")

	// Alert errors
	ErrAlertNotFound      = errors.New("alert not found")
	ErrAlertAlreadyClosed = errors.New("alert is already resolved or ignored")

	// Input validation errors
	ErrInvalidWindow         = errors.New("sync window must be today or yesterday")
	ErrInvalidGranularity    = errors.New("granularity must be daily or hourly")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
	ErrDateRangeTooLong      = errors.New("date range cannot exceed 366 days")
	ErrInvalidTimeOfDay      = errors.New("time of day must be morning, afternoon or evening")
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")

	// Sync errors
	ErrSyncInProgress = errors.New("a sync for this account is already running")

	// Narrative errors
	ErrEmptyNarrative = errors.New("language model returned no narrative content")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserIDRequired(err error) bool {
	return errors.Is(err, ErrUserIDRequired)
}

func IsFacebookAccountNotFound(err error) bool {
	return errors.Is(err, ErrFacebookAccountNotFound)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsAlertNotFound(err error) bool {
	return errors.Is(err, ErrAlertNotFound)
}

func IsAlertAlreadyClosed(err error) bool {
	return errors.Is(err, ErrAlertAlreadyClosed)
}

func IsInvalidWindow(err error) bool {
	return errors.Is(err, ErrInvalidWindow)
}

func IsInvalidGranularity(err error) bool {
	return errors.Is(err, ErrInvalidGranularity)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}

func IsDateRangeTooLong(err error) bool {
	return errors.Is(err, ErrDateRangeTooLong)
}

func IsInvalidTimeOfDay(err error) bool {
	return errors.Is(err, ErrInvalidTimeOfDay)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsSyncInProgress(err error) bool {
	return errors.Is(err, ErrSyncInProgress)
}

// IsValidationError reports whether err was caused by caller input
func IsValidationError(err error) bool {
	return IsInvalidWindow(err) || IsInvalidGranularity(err) || IsStartDateAfterEndDate(err) ||
		IsDateRangeTooLong(err) || IsInvalidTimeOfDay(err) || IsInvalidPage(err) || IsInvalidPageSize(err)
}
