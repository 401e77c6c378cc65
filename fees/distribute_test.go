package fees_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
)

func child(id string, due string) fees.ChildDue {
	return fees.ChildDue{
		StudentID: generic.EntityID(id),
		Due:       generic.NewAmountFromDecimal(generic.MustParseDecimal(due)),
	}
}

func amt(s string) generic.Amount {
	return generic.NewAmountFromDecimal(generic.MustParseDecimal(s))
}

func TestDistributePayment_Proportional(t *testing.T) {
	// GIVEN: Dues A=1000, B=500 and a payment of 900
	// THEN: A gets 600, B gets 300

	alloc := fees.DistributePayment(amt("900"), []fees.ChildDue{
		child("a", "1000"),
		child("b", "500"),
	})

	assert.Equal(t, "600.00", alloc["a"].String())
	assert.Equal(t, "300.00", alloc["b"].String())
	assert.Equal(t, "900.00", alloc.Total().String())
}

func TestDistributePayment_OverpaymentPaysExactDues(t *testing.T) {
	// GIVEN: Payment larger than the combined due
	// THEN: Each child gets exactly their due, the rest stays unallocated

	alloc := fees.DistributePayment(amt("2000"), []fees.ChildDue{
		child("a", "1000"),
		child("b", "500"),
	})

	assert.Equal(t, "1000.00", alloc["a"].String())
	assert.Equal(t, "500.00", alloc["b"].String())
	assert.Equal(t, "1500.00", alloc.Total().String())
}

func TestDistributePayment_SingleChildGetsWholePayment(t *testing.T) {
	alloc := fees.DistributePayment(amt("300"), []fees.ChildDue{child("a", "1000")})

	assert.Len(t, alloc, 1)
	assert.Equal(t, "300.00", alloc["a"].String())
}

func TestDistributePayment_NeverExceedsPaymentOrDue(t *testing.T) {
	cases := []struct {
		name     string
		payment  string
		children []fees.ChildDue
	}{
		{"uneven thirds", "100", []fees.ChildDue{child("a", "333.33"), child("b", "333.33"), child("c", "333.34")}},
		{"tiny payment", "0.05", []fees.ChildDue{child("a", "700"), child("b", "1300")}},
		{"exact total", "1750", []fees.ChildDue{child("a", "250"), child("b", "500"), child("c", "1000")}},
		{"odd amounts", "1234.56", []fees.ChildDue{child("a", "999.99"), child("b", "0.01"), child("c", "4321")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payment := amt(tc.payment)
			alloc := fees.DistributePayment(payment, tc.children)

			assert.False(t, alloc.Total().GreaterThan(payment), "allocated %s > payment %s", alloc.Total(), payment)
			for _, c := range tc.children {
				assert.False(t, alloc[c.StudentID].GreaterThan(c.Due), "%s over-allocated", c.StudentID)
				assert.False(t, alloc[c.StudentID].IsNegative())
			}
		})
	}
}

func TestDistributePayment_NoDueChildrenSkipped(t *testing.T) {
	alloc := fees.DistributePayment(amt("500"), []fees.ChildDue{
		child("a", "0"),
		child("b", "800"),
	})

	_, hasA := alloc["a"]
	assert.False(t, hasA)
	assert.Equal(t, "500.00", alloc["b"].String())
}

func TestDistributePayment_NothingToDistribute(t *testing.T) {
	assert.Empty(t, fees.DistributePayment(amt("0"), []fees.ChildDue{child("a", "100")}))
	assert.Empty(t, fees.DistributePayment(amt("100"), nil))
	assert.Empty(t, fees.DistributePayment(amt("100"), []fees.ChildDue{child("a", "0")}))
}

func TestAllocations_Rounded(t *testing.T) {
	alloc := fees.Allocations{
		"a": amt("33.333333"),
		"b": amt("66.665"),
		"c": amt("0.001"),
	}

	rounded := alloc.Rounded()

	require.Len(t, rounded, 2)
	assert.Equal(t, "33.33", rounded["a"].String())
	assert.Equal(t, "66.67", rounded["b"].String())
	assert.Equal(t, []generic.EntityID{"a", "b"}, rounded.IDs())
}

func TestAllocations_RoundedWithinPayment(t *testing.T) {
	// GIVEN: Three children owing 0.01 each and a payment of 0.02
	// WHEN: Rounding the exact shares to cents
	// THEN: The rounded shares still add up to the payment
	children := []fees.ChildDue{child("a", "0.01"), child("b", "0.01"), child("c", "0.01")}
	alloc := fees.DistributePayment(amt("0.02"), children)

	assert.Equal(t, "0.03", alloc.Rounded().Total().String())

	rounded := alloc.RoundedWithin(amt("0.02"))
	assert.Equal(t, "0.02", rounded.Total().String())
	assert.Equal(t, []generic.EntityID{"a", "b"}, rounded.IDs())
}

func TestAllocations_RoundedWithinKeepsExactSplits(t *testing.T) {
	alloc := fees.DistributePayment(amt("100"), []fees.ChildDue{
		child("a", "100"), child("b", "100"), child("c", "100"),
	})

	rounded := alloc.RoundedWithin(amt("100"))

	// 33.333... rounds down for everyone, so nothing is taken back
	assert.Equal(t, "99.99", rounded.Total().String())
	assert.Equal(t, "33.33", rounded["c"].String())
}
