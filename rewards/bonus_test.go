package rewards_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantage/points-engine/rewards"
	"github.com/vantage/points-engine/rewards/store"
)

// testConfig keeps the eligibility numbers easy to reason about:
// quarterly target 1000 (yearly 4000), threshold 80%, limit 10000.
func testConfig() *rewards.RewardConfig {
	cfg := rewards.DefaultRewardConfig()
	cfg.GradeTargets = map[rewards.Grade]int{
		rewards.GradeA1: 500,
		rewards.GradeB1: 1000,
	}
	return cfg
}

func eligibleInput() rewards.EligibilityInput {
	return rewards.EligibilityInput{
		QuarterlyPoints: 1200,
		YearlyPoints:    1200,
		Grade:           rewards.GradeB1,
		UtilizationPct:  85,
		Quarter:         1,
	}
}

// =============================================================================
// GATE CHAIN
// =============================================================================

func TestCheckEligibility_GateChainFirstFailureWins(t *testing.T) {
	cfg := testConfig()

	cases := []struct {
		name   string
		mutate func(*rewards.EligibilityInput)
		reason string
	}{
		{
			"bonus already awarded",
			func(in *rewards.EligibilityInput) { in.BonusAlreadyAwarded = true },
			"Bonus already awarded this quarter",
		},
		{
			"unknown grade",
			func(in *rewards.EligibilityInput) { in.Grade = "Z9" },
			"Unknown employee grade",
		},
		{
			"insufficient points",
			func(in *rewards.EligibilityInput) { in.QuarterlyPoints = 900 },
			"Insufficient points: 900/1000",
		},
		{
			"insufficient billability",
			func(in *rewards.EligibilityInput) { in.UtilizationPct = 72.5 },
			"Insufficient billability: 72.50% (required: 80%)",
		},
		{
			"yearly limit reached",
			func(in *rewards.EligibilityInput) { in.YearlyBonusPoints = 10000 },
			"Yearly bonus points limit reached: 10000/10000",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := eligibleInput()
			tc.mutate(&in)

			result := rewards.CheckEligibility(cfg, in)
			assert.False(t, result.Eligible)
			assert.Equal(t, tc.reason, result.Reason)
			assert.Zero(t, result.BonusAmount)
		})
	}
}

func TestCheckEligibility_LowestGradeExemptFromBillability(t *testing.T) {
	// GIVEN: An A1 employee with utilization below the threshold
	// WHEN: Checking eligibility
	// THEN: The billability gate does not apply to the lowest tier

	cfg := testConfig()
	in := rewards.EligibilityInput{
		QuarterlyPoints: 600,
		YearlyPoints:    600,
		Grade:           rewards.GradeA1,
		UtilizationPct:  10,
		Quarter:         1,
	}

	result := rewards.CheckEligibility(cfg, in)
	assert.True(t, result.Eligible)
}

// =============================================================================
// MILESTONE AMOUNTS
// =============================================================================

func TestMilestoneBonus_CumulativeNotExclusive(t *testing.T) {
	// GIVEN: A user jumping from 0% straight to 100% of the yearly
	//        target within Q1
	// WHEN: Computing the milestone bonus
	// THEN: Every milestone pays at once: 1000+2000+3000+4000

	cfg := rewards.DefaultRewardConfig()

	amount, achieved := rewards.MilestoneBonus(cfg, 4000, 4000, 1)
	assert.Equal(t, 10000, amount)
	assert.Len(t, achieved, 4)
}

func TestMilestoneBonus_ZeroQuarterEntriesDoNotPay(t *testing.T) {
	// In Q3 only milestones 1 and 4 carry nonzero amounts.
	cfg := rewards.DefaultRewardConfig()

	amount, achieved := rewards.MilestoneBonus(cfg, 4000, 4000, 3)
	assert.Equal(t, 3000, amount)
	require.Len(t, achieved, 2)
	assert.Equal(t, 25, achieved[0].Percentage)
	assert.Equal(t, 100, achieved[1].Percentage)
}

func TestMilestoneBonus_MonotonicInYearlyPoints(t *testing.T) {
	// More yearly points never pays less within the same quarter.
	cfg := rewards.DefaultRewardConfig()

	prev := 0
	for points := 0; points <= 4400; points += 200 {
		amount, _ := rewards.MilestoneBonus(cfg, points, 4000, 2)
		assert.GreaterOrEqual(t, amount, prev, "yearly points %d", points)
		prev = amount
	}
}

func TestMilestoneBonus_ZeroTargetPaysNothing(t *testing.T) {
	cfg := rewards.DefaultRewardConfig()
	amount, achieved := rewards.MilestoneBonus(cfg, 5000, 0, 1)
	assert.Zero(t, amount)
	assert.Empty(t, achieved)
}

func TestCheckEligibility_RevokesWhenAwardWouldExceedLimit(t *testing.T) {
	// GIVEN: 8000 yearly bonus points already, milestone award of 4000
	// WHEN: Checking eligibility
	// THEN: Eligibility is revoked outright - no truncation to 2000

	cfg := testConfig()
	in := eligibleInput()
	in.YearlyPoints = 4000 // 100% of yearly target
	in.YearlyBonusPoints = 8000

	result := rewards.CheckEligibility(cfg, in)
	assert.False(t, result.Eligible)
	assert.Equal(t, "Awarding 10000 bonus points would exceed the yearly bonus limit of 10000", result.Reason)
	assert.Zero(t, result.BonusAmount)
}

// =============================================================================
// ENGINE - store-backed evaluation
// =============================================================================

func TestBonusEngine_EvaluateUser(t *testing.T) {
	// GIVEN: A B1 employee over the quarterly target with adequate
	//        utilization and no prior bonus
	// WHEN: Evaluating the quarter
	// THEN: Eligible for the 25% milestone amount

	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.InsertLegacyCategory(ctx, &rewards.Category{
		ID: "cat-delivery", Name: "Delivery", Code: "delivery", Active: true,
	}))
	require.NoError(t, mem.InsertLegacyCategory(ctx, &rewards.Category{
		ID: "cat-util", Name: "Utilization", Code: rewards.CodeUtilizationBillable, Active: true,
	}))
	require.NoError(t, mem.InsertUser(ctx, &rewards.User{
		ID: "u1", Name: "Asha", Grade: rewards.GradeB1, Role: rewards.RoleEmployee,
	}))

	cfgProvider := rewards.NewConfigProvider(mem)
	require.NoError(t, cfgProvider.Update(ctx, testConfig()))

	require.NoError(t, mem.InsertRequest(ctx,
		approvedRequest("r1", "u1", "cat-delivery", 1100, date(2025, time.April, 15))))

	util := 0.90
	ur := approvedRequest("r2", "u1", "cat-util", 0, date(2025, time.May, 1))
	ur.UtilizationValue = &util
	require.NoError(t, mem.InsertRequest(ctx, ur))

	engine := &rewards.BonusEngine{Store: mem, Config: cfgProvider}
	result, err := engine.EvaluateUser(ctx, "u1", rewards.FiscalQuarter(1, 2025))
	require.NoError(t, err)

	// 1100/4000 = 27.5% yearly: first milestone only.
	assert.True(t, result.Result.Eligible)
	assert.Equal(t, 1000, result.Result.BonusAmount)
	assert.Equal(t, 1100, result.Summary.Total(false))
	assert.Equal(t, 90.0, result.Summary.UtilizationPct)
}

func TestBonusEngine_AwardClosesTheQuarterGate(t *testing.T) {
	// GIVEN: A user who already holds a bonus ledger entry in Q2
	// WHEN: Evaluating Q2 again
	// THEN: The already-awarded gate fires

	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.InsertLegacyCategory(ctx, &rewards.Category{
		ID: "cat-bonus", Name: "Bonus Points", Code: rewards.CodeBonusPoints, Active: true, IsBonus: true,
	}))
	require.NoError(t, mem.InsertUser(ctx, &rewards.User{
		ID: "u1", Name: "Asha", Grade: rewards.GradeB1, Role: rewards.RoleEmployee,
	}))

	cfgProvider := rewards.NewConfigProvider(mem)
	require.NoError(t, cfgProvider.Update(ctx, testConfig()))

	require.NoError(t, mem.InsertPoint(ctx, &rewards.Point{
		ID: "p1", UserID: "u1", CategoryID: "cat-bonus", Points: 1000, IsBonus: true,
		AwardDate: tp(date(2025, time.August, 1)),
	}))

	engine := &rewards.BonusEngine{Store: mem, Config: cfgProvider}
	result, err := engine.EvaluateUser(ctx, "u1", rewards.FiscalQuarter(2, 2025))
	require.NoError(t, err)

	assert.False(t, result.Result.Eligible)
	assert.Equal(t, "Bonus already awarded this quarter", result.Result.Reason)

	// The ledger-only award also shows up in the yearly bonus total.
	assert.Equal(t, 1000, result.YearlyBonusPoints)
}
