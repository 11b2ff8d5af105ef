// Package errors provides structured error handling for KeywordScout.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 3XX: Network errors (transient HTTP failures)
//   - 35X: Rate-limit errors (throttling signals)
//   - 36X: Captcha / challenge-page errors
//   - 4XX: Validation errors
//   - 5XX: Data-processing errors (scoring, clustering)
//   - 6XX: External provider errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryRateLimit indicates explicit throttling by a suggestion source.
	CategoryRateLimit Category = "RATE_LIMIT"
	// CategoryCaptcha indicates a challenge page was served instead of results.
	CategoryCaptcha Category = "CAPTCHA"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryProcessing indicates scoring or clustering failures.
	CategoryProcessing Category = "PROCESSING"
	// CategoryExternal indicates a downstream provider is unavailable.
	CategoryExternal Category = "EXTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Network errors (300-349)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeHTTPStatus         = "ERR_303_HTTP_STATUS"

	// Rate-limit errors (350-359)
	ErrCodeRateLimited = "ERR_351_RATE_LIMITED"

	// Captcha errors (360-369)
	ErrCodeCaptchaDetected = "ERR_361_CAPTCHA_DETECTED"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidWeights = "ERR_402_INVALID_WEIGHTS"
	ErrCodeEmptySeeds     = "ERR_403_EMPTY_SEEDS"

	// Processing errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeScoringFailed    = "ERR_502_SCORING_FAILED"
	ErrCodeClusteringFailed = "ERR_503_CLUSTERING_FAILED"

	// External provider errors (600-699)
	ErrCodeProviderUnavailable = "ERR_601_PROVIDER_UNAVAILABLE"
	ErrCodeStoreFailure        = "ERR_602_STORE_FAILURE"
)

// categoryFromCode derives the category from the numeric range of a code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryProcessing
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '3':
		switch code[5] {
		case '5':
			return CategoryRateLimit
		case '6':
			return CategoryCaptcha
		default:
			return CategoryNetwork
		}
	case '4':
		return CategoryValidation
	case '5':
		return CategoryProcessing
	case '6':
		return CategoryExternal
	default:
		return CategoryProcessing
	}
}

// severityFromCode derives severity from the category.
// Config and validation errors abort the run before any network activity;
// external provider failures only degrade signals.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig, CategoryValidation:
		return SeverityFatal
	case CategoryExternal:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be
// retried. Captcha pages never self-resolve with retries.
func isRetryableCode(code string) bool {
	switch categoryFromCode(code) {
	case CategoryNetwork, CategoryRateLimit:
		return true
	default:
		return false
	}
}
