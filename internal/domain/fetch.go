package domain

import (
	"time"

	"github.com/google/uuid"
)

// FetchResultCode classifies the outcome of a fetch attempt.
type FetchResultCode string

const (
	FetchCompleted          FetchResultCode = "COMPLETED"
	FetchCooldown           FetchResultCode = "COOLDOWN"
	FetchCodeRequested      FetchResultCode = "CODE_REQUESTED"
	FetchManualLogin        FetchResultCode = "MANUAL_LOGIN"
	FetchLoginRequired      FetchResultCode = "LOGIN_REQUIRED"
	FetchInvalidCode        FetchResultCode = "INVALID_CODE"
	FetchInvalidCredentials FetchResultCode = "INVALID_CREDENTIALS"
	FetchNoCredentials      FetchResultCode = "NO_CREDENTIALS_AVAILABLE"
	FetchFeatureUnsupported FetchResultCode = "FEATURE_NOT_SUPPORTED"
	FetchUnexpectedError    FetchResultCode = "UNEXPECTED_ERROR"
)

// LoginResultCode classifies a login attempt against an entity.
type LoginResultCode string

const (
	LoginCreated       LoginResultCode = "CREATED"
	LoginResumed       LoginResultCode = "RESUMED"
	LoginCodeRequested LoginResultCode = "CODE_REQUESTED"
	LoginManual        LoginResultCode = "MANUAL_LOGIN"
	LoginInvalidCode   LoginResultCode = "INVALID_CODE"
	LoginInvalidCreds  LoginResultCode = "INVALID_CREDENTIALS"
	LoginUnexpected    LoginResultCode = "UNEXPECTED_ERROR"
	LoginNotLogged     LoginResultCode = "NOT_LOGGED"
)

// FetchOptions steers a fetch run.
type FetchOptions struct {
	EntityID uuid.UUID `json:"entity_id"`
	Features []Feature `json:"features,omitempty"`

	// Deep requests the full transaction history instead of the window
	// since the last registered fetch.
	Deep bool `json:"deep"`

	// Code completes a pending two-factor challenge.
	Code string `json:"code,omitempty"`

	// AvoidNewLogin fails with LOGIN_REQUIRED instead of opening a fresh
	// session when the stored one has expired.
	AvoidNewLogin bool `json:"avoid_new_login"`
}

// LoginOptions steers an explicit login (connect) run.
type LoginOptions struct {
	EntityID    uuid.UUID         `json:"entity_id"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Code        string            `json:"code,omitempty"`

	// ProcessID continues a previously started challenge.
	ProcessID string `json:"process_id,omitempty"`
}

// EntityLoginResult is what a fetcher's login step reports back.
type EntityLoginResult struct {
	Code      LoginResultCode `json:"code"`
	ProcessID string          `json:"process_id,omitempty"`
	Session   *EntitySession  `json:"-"`
	Details   map[string]any  `json:"details,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// FetchedData is everything a fetcher returns for the requested features.
// Absent features leave their field nil.
type FetchedData struct {
	Position      *GlobalPosition     `json:"position,omitempty"`
	Transactions  *Transactions       `json:"transactions,omitempty"`
	Contributions *AutoContributions  `json:"contributions,omitempty"`
	Historic      *HistoricalPosition `json:"historic,omitempty"`
}

// FetchResult is the engine's reply to a fetch request.
type FetchResult struct {
	Code    FetchResultCode `json:"code"`
	Data    *FetchedData    `json:"data,omitempty"`
	Details map[string]any  `json:"details,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Completed reports whether the run produced data.
func (r FetchResult) Completed() bool { return r.Code == FetchCompleted }

// FetchRecord registers one successful feature fetch, used for cooldown
// checks and incremental transaction windows.
type FetchRecord struct {
	EntityID uuid.UUID `json:"entity_id"`
	Feature  Feature   `json:"feature"`
	Date     time.Time `json:"date"`
}
