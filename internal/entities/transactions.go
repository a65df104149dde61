package entities

import (
	"time"
)

// TransactionType is the closed set of transaction kinds the platform
// submits through the gateway. Dispatch on it is always an exhaustive
// switch so adding a type is a compile-time-checked change.
type TransactionType string

const (
	TransactionTypeCreateCourse            TransactionType = "create_course"
	TransactionTypeUpdateCourse            TransactionType = "update_course"
	TransactionTypeCreateProject           TransactionType = "create_project"
	TransactionTypeMintCredential          TransactionType = "mint_credential"
	TransactionTypeSponsoredMintCredential TransactionType = "sponsored_mint_credential"
)

// AllTransactionTypes returns every supported transaction type.
func AllTransactionTypes() []TransactionType {
	return []TransactionType{
		TransactionTypeCreateCourse,
		TransactionTypeUpdateCourse,
		TransactionTypeCreateProject,
		TransactionTypeMintCredential,
		TransactionTypeSponsoredMintCredential,
	}
}

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeCreateCourse,
		TransactionTypeUpdateCourse,
		TransactionTypeCreateProject,
		TransactionTypeMintCredential,
		TransactionTypeSponsoredMintCredential:
		return true
	}
	return false
}

// RequiresWatch reports whether post-submission confirmation tracking is
// needed for this type. Course and project writes are final on submission;
// credential mints have dependent database effects applied upstream after
// on-chain confirmation, so they must be watched until "updated".
func (t TransactionType) RequiresWatch() bool {
	switch t {
	case TransactionTypeCreateCourse, TransactionTypeUpdateCourse, TransactionTypeCreateProject:
		return false
	case TransactionTypeMintCredential, TransactionTypeSponsoredMintCredential:
		return true
	}
	return false
}

// IsSponsored reports whether the build endpoint returns a pre-signed
// payload for this type, requiring only a partial signature from the user.
func (t TransactionType) IsSponsored() bool {
	return t == TransactionTypeSponsoredMintCredential
}

func (t TransactionType) DisplayName() string {
	switch t {
	case TransactionTypeCreateCourse:
		return "Course creation"
	case TransactionTypeUpdateCourse:
		return "Course update"
	case TransactionTypeCreateProject:
		return "Project creation"
	case TransactionTypeMintCredential:
		return "Credential mint"
	case TransactionTypeSponsoredMintCredential:
		return "Sponsored credential mint"
	}
	return string(t)
}

// TransactionState is the external, authoritative confirmation lifecycle of
// a submitted transaction as reported by the gateway's status source.
type TransactionState string

const (
	PendingState   TransactionState = "pending"
	ConfirmedState TransactionState = "confirmed"
	// UpdatedState means the transaction is confirmed on-chain and all
	// dependent database effects were applied upstream.
	UpdatedState TransactionState = "updated"
	FailedState  TransactionState = "failed"
	ExpiredState TransactionState = "expired"
)

// IsTerminal reports whether no further transitions are expected. Once a
// terminal state is observed for a hash, no later update may supersede it.
func (s TransactionState) IsTerminal() bool {
	switch s {
	case UpdatedState, FailedState, ExpiredState:
		return true
	}
	return false
}

// TransactionStatus is the JSON object returned by the gateway status
// endpoint and carried in confirmation stream events.
type TransactionStatus struct {
	TransactionHash string           `json:"tx_hash"`
	TransactionType TransactionType  `json:"tx_type"`
	State           TransactionState `json:"state"`
	RetryCount      int              `json:"retry_count"`
	LastError       string           `json:"last_error,omitempty"`
}

// TransactionHandle identifies one unit of work. The hash is assigned only
// after a successful submission.
type TransactionHandle struct {
	Hash      string          `json:"tx_hash"`
	Type      TransactionType `json:"tx_type"`
	CreatedAt time.Time       `json:"created_at"`
}

// BuildParams are the type-specific parameters accepted by the gateway's
// build endpoint. Which fields are required depends on the transaction type
// and is enforced by the validators package.
type BuildParams struct {
	CourseID         string `json:"course_id,omitempty" validate:"omitempty,max=64"`
	ProjectID        string `json:"project_id,omitempty" validate:"omitempty,max=64"`
	CredentialID     string `json:"credential_id,omitempty" validate:"omitempty,max=64"`
	RecipientAddress string `json:"recipient_address,omitempty" validate:"omitempty,max=128"`
	Title            string `json:"title,omitempty" validate:"omitempty,max=256"`
}

// BuildTransactionRequest is the body sent to the gateway build endpoint.
// ReferenceID is a client-generated id used by the gateway for idempotency.
type BuildTransactionRequest struct {
	Type        TransactionType `json:"tx_type"`
	ReferenceID string          `json:"reference_id"`
	Params      BuildParams     `json:"params"`
}

// BuildTransactionResponse is the unsigned payload returned by the gateway.
// For sponsored variants the payload is pre-signed by the fee sponsor and
// PreSigned is true, so the wallet only applies a partial signature.
type BuildTransactionResponse struct {
	TransactionPayload string            `json:"transaction_payload"`
	PreSigned          bool              `json:"pre_signed"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// RecordTransactionRequest is the body sent to the gateway tracking
// endpoint after a successful submission. Failures recording are logged and
// never affect the primary flow.
type RecordTransactionRequest struct {
	TransactionHash string          `json:"tx_hash"`
	Type            TransactionType `json:"tx_type"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}
