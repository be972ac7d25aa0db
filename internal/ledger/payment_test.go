package ledger

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoster(t *testing.T) *Roster {
	t.Helper()
	r, err := NewRoster("Julia", "Jack", []WalletDef{{Name: "Dollar", Symbol: "$"}, {Name: "Toman", Symbol: "T"}})
	require.NoError(t, err)
	return r
}

func TestNewPayment_Valid(t *testing.T) {
	p, err := NewPayment(testRoster(t), "Julia", "Dollar", "12.50", "")
	require.NoError(t, err)
	assert.Equal(t, "Julia", p.Payer)
	assert.Equal(t, "12.50", p.Amount)
	assert.Equal(t, NoNote, p.Note)
	assert.Equal(t, "$", p.WalletSymbol)
	assert.True(t, p.Timestamp.IsZero(), "constructor must not stamp a time")
}

func TestNewPayment_Rejections(t *testing.T) {
	dir := testRoster(t)
	tests := []struct {
		name                  string
		payer, wallet, amount string
		want                  error
		field                 string
	}{
		{"unknown payer", "Bob", "Dollar", "1", ErrInvalidPayer, "payer"},
		{"empty payer", "", "Dollar", "1", ErrInvalidPayer, "payer"},
		{"unknown wallet", "Jack", "Euro", "1", ErrInvalidWallet, "wallet"},
		{"empty amount", "Jack", "Dollar", "", ErrInvalidAmount, "amount"},
		{"negative amount", "Jack", "Dollar", "-3", ErrInvalidAmount, "amount"},
		{"three decimals", "Jack", "Dollar", "1.005", ErrInvalidAmount, "amount"},
		{"trailing point", "Jack", "Dollar", "4.", ErrInvalidAmount, "amount"},
		{"words", "Jack", "Dollar", "ten", ErrInvalidAmount, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPayment(dir, tt.payer, tt.wallet, tt.amount, "x")
			assert.ErrorIs(t, err, tt.want)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidCaptureAmount(t *testing.T) {
	for _, ok := range []string{"0", "10", "10.50", "999999.99"} {
		assert.True(t, ValidCaptureAmount(ok), ok)
	}
	for _, bad := range []string{"", "10.5", "10.", ".50", "1,5", "1e3", "-1"} {
		assert.False(t, ValidCaptureAmount(bad), bad)
	}
	assert.True(t, ValidAmount("10.5"))
}

func TestAmountDigitsBounded(t *testing.T) {
	longest := strings.Repeat("9", MaxAmountDigits)
	assert.True(t, ValidCaptureAmount(longest+".99"))
	assert.True(t, ValidAmount(longest+".9"))

	tooLong := strings.Repeat("9", MaxAmountDigits+1)
	assert.False(t, ValidCaptureAmount(tooLong))
	assert.False(t, ValidAmount(tooLong))
	assert.False(t, ValidCaptureAmount(strings.Repeat("9", 40)))

	_, err := NewPayment(testRoster(t), "Jack", "Dollar", tooLong, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPayment_At_TruncatesToSeconds(t *testing.T) {
	p := Payment{}.At(time.Date(2024, 1, 2, 3, 4, 5, 999, time.FixedZone("X", 3600)))
	assert.Equal(t, time.Date(2024, 1, 2, 2, 4, 5, 0, time.UTC), p.Timestamp)
}

func TestPayment_JSONRoundTrip(t *testing.T) {
	dir := testRoster(t)
	orig, err := NewPayment(dir, "Jack", "Toman", "250000", "rent")
	require.NoError(t, err)
	orig = orig.At(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))

	data, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payer":"Jack","amount":"250000","wallet":"Toman","note":"rent","datetime":"2024-05-06 07:08:09"}`, string(data))

	var back Payment
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "", back.WalletSymbol)
	assert.Equal(t, orig.Payer, back.Payer)
	assert.Equal(t, orig.Wallet, back.Wallet)
	assert.Equal(t, orig.Amount, back.Amount)
	assert.Equal(t, orig.Note, back.Note)
	assert.True(t, orig.Timestamp.Equal(back.Timestamp))

	assert.Equal(t, orig, back.Resolve(dir))
}

func TestPayment_SymbolFollowsCurrentConfig(t *testing.T) {
	p := Payment{Wallet: "Dollar", WalletSymbol: "stale"}
	r, err := NewRoster("Julia", "Jack", []WalletDef{{Name: "Dollar", Symbol: "USD"}})
	require.NoError(t, err)
	assert.Equal(t, "USD", p.Resolve(r).WalletSymbol)
}

func TestRoster(t *testing.T) {
	r := testRoster(t)
	assert.Equal(t, [2]string{"Julia", "Jack"}, r.Identities())
	other, err := r.OtherIdentity("Jack")
	require.NoError(t, err)
	assert.Equal(t, "Julia", other)
	_, err = r.OtherIdentity("Nobody")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
	_, err = r.SymbolFor("Euro")
	assert.ErrorIs(t, err, ErrUnknownWallet)
	assert.Equal(t, []string{"Dollar", "Toman"}, r.WalletNames())

	_, err = NewRoster("A", "A", []WalletDef{{Name: "Dollar", Symbol: "$"}})
	assert.Error(t, err)
	_, err = NewRoster("A", "B", nil)
	assert.Error(t, err)
	_, err = NewRoster("A", "B", []WalletDef{{Name: "Dollar", Symbol: "$"}, {Name: "Dollar", Symbol: "T"}})
	assert.Error(t, err)
}
