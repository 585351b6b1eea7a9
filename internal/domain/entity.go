package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies the source of financial data.
type EntityType string

const (
	EntityTypeFinancialInstitution EntityType = "FINANCIAL_INSTITUTION"
	EntityTypeCryptoExchange       EntityType = "CRYPTO_EXCHANGE"
	EntityTypeCryptoWallet         EntityType = "CRYPTO_WALLET"
)

// EntityOrigin distinguishes seeded institutions from user-created sources.
type EntityOrigin string

const (
	EntityOriginNative   EntityOrigin = "NATIVE"
	EntityOriginManual   EntityOrigin = "MANUAL"
	EntityOriginExternal EntityOrigin = "EXTERNAL"
)

// Feature is a capability advertised by an entity's fetcher.
type Feature string

const (
	FeaturePosition          Feature = "POSITION"
	FeatureTransactions      Feature = "TRANSACTIONS"
	FeatureAutoContributions Feature = "AUTO_CONTRIBUTIONS"
	FeatureHistoric          Feature = "HISTORIC"
)

// CredentialType drives presence validation of credential fields. INTERNAL
// fields are written by fetchers (cookies, device tokens) and are not
// required from the user.
type CredentialType string

const (
	CredentialTypeID           CredentialType = "ID"
	CredentialTypeEmail        CredentialType = "EMAIL"
	CredentialTypePhone        CredentialType = "PHONE"
	CredentialTypePassword     CredentialType = "PASSWORD"
	CredentialTypePin          CredentialType = "PIN"
	CredentialTypeAPIToken     CredentialType = "API_TOKEN"
	CredentialTypeInternal     CredentialType = "INTERNAL"
	CredentialTypeInternalTemp CredentialType = "INTERNAL_TEMP"
)

// Entity is a financial institution, exchange, chain or user-defined source.
// Native entities are seeded with stable ids and carry a credential template.
type Entity struct {
	ID           uuid.UUID                 `json:"id"`
	Name         string                    `json:"name"`
	Type         EntityType                `json:"type"`
	Origin       EntityOrigin              `json:"origin"`
	NaturalID    string                    `json:"natural_id,omitempty"`
	Features     []Feature                 `json:"features"`
	CredTemplate map[string]CredentialType `json:"-"`
}

// HasFeature reports whether the entity's fetcher supports f.
func (e Entity) HasFeature(f Feature) bool {
	for _, have := range e.Features {
		if have == f {
			return true
		}
	}
	return false
}

// SupportsAll reports whether every requested feature is advertised.
func (e Entity) SupportsAll(features []Feature) bool {
	for _, f := range features {
		if !e.HasFeature(f) {
			return false
		}
	}
	return true
}

// EntityCredentials is the opaque per-entity credential map plus lifecycle
// metadata. Expiration set means the institution rejected them.
type EntityCredentials struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	Fields     map[string]string `json:"-"`
	Expiration *time.Time        `json:"expiration,omitempty"`
	LastUsedAt *time.Time        `json:"last_used_at,omitempty"`
}

// EntitySession is the opaque resumption payload a fetcher hands back after
// login (refresh tokens, device ids, OTP process state).
type EntitySession struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	Payload    map[string]string `json:"-"`
	Creation   time.Time         `json:"creation"`
	Expiration *time.Time        `json:"expiration,omitempty"`
}
