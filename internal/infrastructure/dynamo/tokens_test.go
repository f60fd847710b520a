package dynamo

import (
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-token-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var writeNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func numberValue(t *testing.T, w tokenWrite, key string) string {
	t.Helper()
	n, ok := w.Values[key].(*types.AttributeValueMemberN)
	if !assert.True(t, ok, "%s is not a number attribute", key) {
		return ""
	}
	return n.Value
}

func stringValue(t *testing.T, w tokenWrite, key string) string {
	t.Helper()
	s, ok := w.Values[key].(*types.AttributeValueMemberS)
	if !assert.True(t, ok, "%s is not a string attribute", key) {
		return ""
	}
	return s.Value
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func mustInt(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return n
}

func TestClaimWrite_Condition(t *testing.T) {
	w := claimWrite("abc123", writeNow)

	assert.Equal(t, "SET #c = :now", w.Update)
	assert.Equal(t, "#v = :val AND #e > :now AND (attribute_not_exists(#c) OR #c <= :stale)", w.Condition)
	assert.Equal(t, map[string]string{"#v": fieldValue, "#e": fieldExpiresAt, "#c": fieldClaimedAt}, w.Names)
	assert.Equal(t, "abc123", stringValue(t, w, ":val"))
}

func TestClaimWrite_LeaseArithmetic(t *testing.T) {
	w := claimWrite("abc123", writeNow)

	now := writeNow.Unix()
	assert.Equal(t, itoa(now), numberValue(t, w, ":now"))
	assert.Equal(t, itoa(now-30), numberValue(t, w, ":stale"))
}

func TestReleaseWrite_OnlyMatchingValue(t *testing.T) {
	w := releaseWrite("abc123")

	assert.Equal(t, "REMOVE #c", w.Update)
	assert.Equal(t, "#v = :val", w.Condition)
	assert.Equal(t, map[string]string{"#v": fieldValue, "#c": fieldClaimedAt}, w.Names)
	assert.Equal(t, "abc123", stringValue(t, w, ":val"))
	assert.Len(t, w.Values, 1)
}

func TestSealWrite_ClaimOutlivesLiveness(t *testing.T) {
	tok := domain.NewToken("u1", domain.PurposePasswordResetEmail, "482913", writeNow, 2*time.Hour)
	w := sealWrite(tok)

	assert.Equal(t, "SET #c = :exp", w.Update)
	assert.Equal(t, "#v = :val", w.Condition)
	assert.Equal(t, itoa(tok.ExpiresAt), numberValue(t, w, ":exp"))

	// A claim attempted one second before expiry must still see the seal as
	// fresh: claimed_at (= expires_at) is above that attempt's stale bound.
	last := claimWrite(tok.Value, tok.Expiry().Add(-time.Second))
	assert.Greater(t, tok.ExpiresAt, mustInt(t, numberValue(t, last, ":stale")))
}

func TestValueMatch_DoesNotShareMaps(t *testing.T) {
	a := valueMatch("one")
	b := valueMatch("two")
	a.Names["#c"] = fieldClaimedAt

	assert.NotContains(t, b.Names, "#c")
	assert.Equal(t, "two", stringValue(t, b, ":val"))
}
