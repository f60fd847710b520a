package metrics

import (
	"testing"

	"github.com/go-token-nosql/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTokens(reg)

	m.Issued(domain.PurposeEmailVerify)
	m.Issued(domain.PurposeEmailVerify)
	m.Reused(domain.PurposeEmailVerify)
	m.Redeemed(domain.PurposePasswordResetPhone)
	m.Rejected(domain.PurposePasswordResetEmail, "mismatch")
	m.DispatchFailed(domain.ChannelSMS)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.issued.WithLabelValues("email_verify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reused.WithLabelValues("email_verify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redeemed.WithLabelValues("password_reset_phone")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("password_reset_email", "mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchFailed.WithLabelValues("sms")))
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestNewTokens_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewTokens(reg)
	assert.Panics(t, func() { NewTokens(reg) })
}
