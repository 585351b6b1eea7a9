package rates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuotes(t *testing.T) {
	body := []byte(`{"date":"2025-06-01","eur":{"usd":1.0823,"gbp":0.8441,"jpy":169.4}}`)

	quotes, err := parseQuotes("EUR", body)
	require.NoError(t, err)
	assert.Equal(t, "EUR", quotes.Base)
	assert.Equal(t, "2025-06-01", quotes.Date.Format("2006-01-02"))
	assert.Equal(t, "1.0823", quotes.Rates["USD"].String())
	assert.Equal(t, "0.8441", quotes.Rates["GBP"].String())
}

func TestParseQuotesMissingBase(t *testing.T) {
	body := []byte(`{"date":"2025-06-01","usd":{"eur":0.92}}`)

	_, err := parseQuotes("EUR", body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rates returned")
}

func TestParseQuotesBadDate(t *testing.T) {
	_, err := parseQuotes("EUR", []byte(`{"eur":{"usd":1.08}}`))
	require.Error(t, err)
}
