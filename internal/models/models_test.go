package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanMonthlyTotal(t *testing.T) {
	starter, ok := LookupPlan(PlanStarter)
	require.True(t, ok)

	assert.Equal(t, int64(3000), starter.MonthlyTotal(0))
	assert.Equal(t, int64(3000), starter.MonthlyTotal(1))
	assert.Equal(t, int64(5000), starter.MonthlyTotal(3))

	pro, _ := LookupPlan(PlanProfessional)
	assert.Equal(t, int64(8000), pro.MonthlyTotal(2))

	_, ok = LookupPlan("GOLD")
	assert.False(t, ok)

	plans := Plans()
	require.Len(t, plans, 3)
	assert.Equal(t, PlanStarter, plans[0].Type)
	assert.Equal(t, PlanEnterprise, plans[2].Type)
}

func TestCouponRules(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	c := Coupon{IsActive: true, UsageLimit: 2, UsageCount: 1}
	assert.True(t, c.IsRedeemable(now))
	assert.Equal(t, 1, c.RemainingUses())

	c.ExpiresAt = &past
	assert.True(t, c.IsExpired(now))
	assert.False(t, c.IsRedeemable(now))

	c.ExpiresAt = nil
	c.UsageCount = 2
	assert.False(t, c.IsRedeemable(now))
	assert.Zero(t, c.RemainingUses())

	c.UsageHistory = []CouponUsage{{UserID: "u1", UsedAt: now}}
	assert.True(t, c.UsedBy("u1"))
	assert.False(t, c.UsedBy("u2"))
}

func TestParseGiftGroups(t *testing.T) {
	groups, err := ParseGiftGroups([]byte(`{"roses":{"gifts":[5655]},"lions":{}}`))
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	for _, raw := range []string{`[]`, `"x"`, `null`, `{"a":1}`, `{"a":[1]}`} {
		_, err := ParseGiftGroups([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestInstanceConfigMerge(t *testing.T) {
	base := DefaultInstanceConfig()
	patch, err := ParseInstanceConfig([]byte(`{"theme":"light","volume":3}`))
	require.NoError(t, err)

	merged := base.Merge(patch)
	assert.JSONEq(t, `"light"`, string(merged["theme"]))
	assert.JSONEq(t, `3`, string(merged["volume"]))
	assert.JSONEq(t, `"en"`, string(merged["language"]))
	assert.JSONEq(t, `"dark"`, string(base["theme"]), "merge does not modify the receiver")
}

func TestInstanceDataRoundTrip(t *testing.T) {
	doc, err := EncodeInstanceDocument(GiftGroups{"a": json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)

	data := InstanceData{AccountID: "acc", DataType: DataGiftGroups, Document: doc}
	decoded, err := data.Decode()
	require.NoError(t, err)
	assert.Equal(t, DataGiftGroups, decoded.DataType())
	assert.Len(t, decoded.(GiftGroups), 1)

	empty := InstanceData{DataType: DataAnalytics}
	snap, err := empty.Decode()
	require.NoError(t, err)
	out, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestUpdateCouponRequestExpiresAt(t *testing.T) {
	var omitted UpdateCouponRequest
	require.NoError(t, json.Unmarshal([]byte(`{"isActive":false}`), &omitted))
	assert.False(t, omitted.ExpiresAt.Set)

	var cleared UpdateCouponRequest
	require.NoError(t, json.Unmarshal([]byte(`{"expiresAt":null}`), &cleared))
	assert.True(t, cleared.ExpiresAt.Set)
	assert.Nil(t, cleared.ExpiresAt.Value)

	var set UpdateCouponRequest
	require.NoError(t, json.Unmarshal([]byte(`{"expiresAt":"2027-01-02T03:04:05Z"}`), &set))
	require.NotNil(t, set.ExpiresAt.Value)
	assert.Equal(t, 2027, set.ExpiresAt.Value.Year())
}
