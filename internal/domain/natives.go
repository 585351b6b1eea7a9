package domain

import "github.com/google/uuid"

// Native entity ids are stable across installations so stored credentials,
// sessions and positions survive re-seeding.
var (
	NativeBankIberiaID   = uuid.MustParse("e0000000-0000-0000-0000-000000000001")
	NativeBrokerNordID   = uuid.MustParse("e0000000-0000-0000-0000-000000000002")
	NativeCrowdEstateID  = uuid.MustParse("e0000000-0000-0000-0000-000000000003")
	NativeInvoiceMarkID  = uuid.MustParse("e0000000-0000-0000-0000-000000000004")
	NativeFundSocietyID  = uuid.MustParse("e0000000-0000-0000-0000-000000000005")
	NativeChainScanID   = uuid.MustParse("e0000000-0000-0000-0000-000000000006")
)

// NativeEntities returns the seeded registry. The slice is rebuilt on each
// call so callers can mutate their copy.
func NativeEntities() []Entity {
	return []Entity{
		{
			ID:     NativeBankIberiaID,
			Name:   "Bank Iberia",
			Type:   EntityTypeFinancialInstitution,
			Origin: EntityOriginNative,
			Features: []Feature{
				FeaturePosition, FeatureTransactions, FeatureAutoContributions,
			},
			CredTemplate: map[string]CredentialType{
				"user":     CredentialTypeID,
				"password": CredentialTypePassword,
				"abck":     CredentialTypeInternal,
			},
		},
		{
			ID:     NativeBrokerNordID,
			Name:   "Broker Nord",
			Type:   EntityTypeFinancialInstitution,
			Origin: EntityOriginNative,
			Features: []Feature{
				FeaturePosition, FeatureTransactions, FeatureAutoContributions,
			},
			CredTemplate: map[string]CredentialType{
				"username": CredentialTypeEmail,
				"password": CredentialTypePassword,
			},
		},
		{
			ID:     NativeCrowdEstateID,
			Name:   "CrowdEstate",
			Type:   EntityTypeFinancialInstitution,
			Origin: EntityOriginNative,
			Features: []Feature{
				FeaturePosition, FeatureTransactions, FeatureHistoric,
			},
			CredTemplate: map[string]CredentialType{
				"email":    CredentialTypeEmail,
				"password": CredentialTypePassword,
			},
		},
		{
			ID:     NativeInvoiceMarkID,
			Name:   "InvoiceMark",
			Type:   EntityTypeFinancialInstitution,
			Origin: EntityOriginNative,
			Features: []Feature{
				FeaturePosition, FeatureTransactions, FeatureHistoric,
			},
			CredTemplate: map[string]CredentialType{
				"phone": CredentialTypePhone,
				"pin":   CredentialTypePin,
			},
		},
		{
			ID:     NativeFundSocietyID,
			Name:   "FundSociety",
			Type:   EntityTypeFinancialInstitution,
			Origin: EntityOriginNative,
			Features: []Feature{
				FeaturePosition, FeatureAutoContributions,
			},
			CredTemplate: map[string]CredentialType{
				"user":     CredentialTypeID,
				"password": CredentialTypePassword,
			},
		},
		{
			ID:     NativeChainScanID,
			Name:   "ChainScan",
			Type:   EntityTypeCryptoWallet,
			Origin: EntityOriginNative,
			Features: []Feature{
				FeaturePosition,
			},
			CredTemplate: map[string]CredentialType{
				"api_token": CredentialTypeAPIToken,
			},
		},
	}
}
