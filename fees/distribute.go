/*
distribute.go - Splitting one family payment across several children

PURPOSE:
  A parent pays one lump sum for all their children. The payment is split
  in proportion to each child's outstanding due, never giving a child more
  than they owe.

ALGORITHM:
  Phase 1 - proportional:
    totalDue = sum of dues
    each child gets min(due, due x payment / totalDue)

  Phase 2 - residual:
    while remaining > 0.01 and some child is still short:
      split remaining evenly across the children still short,
      cap each share at that child's shortfall,
      drop children that are now fully paid.

  Each pass either spends the remainder down to rounding residue or drops
  at least one child, so the loop runs at most once per child.

EXAMPLE:
  dues {A: 1000, B: 500}, payment 900
  A = min(1000, 1000 x 900 / 1500) = 600
  B = min(500,  500 x 900 / 1500)  = 300
  remaining 0, Phase 2 does not run.

ROUNDING:
  Allocations are kept exact here. RoundedWithin() rounds to cents, takes
  back any cents that rounding added beyond the payment, and drops
  anything left at zero; only those become ledger entries.

  dues {A: 0.01, B: 0.01, C: 0.01}, payment 0.02
  exact shares 0.00666... each round up to 0.01, total 0.03
  one cent comes back from C (largest ID among equal round-ups): 0.02
*/
package fees

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/generic"
)

// ChildDue is one child's outstanding balance entering the distributor.
type ChildDue struct {
	StudentID generic.EntityID
	Due       generic.Amount
}

// Allocations maps each child to their share of the payment.
type Allocations map[generic.EntityID]generic.Amount

// Total sums all allocations.
func (a Allocations) Total() generic.Amount {
	total := generic.ZeroAmount()
	for _, v := range a {
		total = total.Add(v)
	}
	return total
}

// Rounded returns allocations rounded to cents, keeping only positive ones.
func (a Allocations) Rounded() Allocations {
	out := make(Allocations, len(a))
	for id, v := range a {
		r := v.Round2()
		if r.IsPositive() {
			out[id] = r
		}
	}
	return out
}

// RoundedWithin applies Rounded, then removes one cent at a
// time from the allocations rounding pushed up the most until the total
// no longer exceeds limit. Ties give the cent back from the largest ID.
func (a Allocations) RoundedWithin(limit generic.Amount) Allocations {
	out := a.Rounded()
	ids := out.IDs()
	cent := generic.NewAmountFromDecimal(generic.Cent)
	for over := out.Total().Sub(limit.Round2()); over.IsPositive(); over = over.Sub(cent) {
		var pick generic.EntityID
		var pickUp generic.Amount
		for _, id := range ids {
			if !out[id].IsPositive() {
				continue
			}
			up := out[id].Sub(a[id])
			if pick == "" || !up.LessThan(pickUp) {
				pick, pickUp = id, up
			}
		}
		if pick == "" {
			break
		}
		out[pick] = out[pick].Sub(cent)
	}
	for id, v := range out {
		if !v.IsPositive() {
			delete(out, id)
		}
	}
	return out
}

// IDs returns the allocated student IDs in sorted order.
func (a Allocations) IDs() []generic.EntityID {
	ids := make([]generic.EntityID, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DistributePayment splits totalPayment across children in proportion to
// their dues. Callers pass only children with a positive due; any others
// receive nothing.
func DistributePayment(totalPayment generic.Amount, children []ChildDue) Allocations {
	alloc := make(Allocations, len(children))
	if !totalPayment.IsPositive() {
		return alloc
	}

	totalDue := generic.ZeroAmount()
	for _, c := range children {
		if c.Due.IsPositive() {
			totalDue = totalDue.Add(c.Due)
		}
	}
	if !totalDue.IsPositive() {
		return alloc
	}

	// Phase 1: proportional share, capped at the child's due
	remaining := totalPayment
	for _, c := range children {
		if !c.Due.IsPositive() {
			continue
		}
		share := quo(c.Due.Mul(totalPayment.Value), totalDue.Value)
		given := c.Due.Min(share)
		alloc[c.StudentID] = alloc[c.StudentID].Add(given)
		remaining = remaining.Sub(given)
	}

	// Phase 2: spread what is left evenly over children still short
	var unpaid []ChildDue
	for _, c := range children {
		if c.Due.IsPositive() && alloc[c.StudentID].LessThan(c.Due) {
			unpaid = append(unpaid, c)
		}
	}

	for remaining.GreaterThan(generic.NewAmountFromDecimal(generic.Cent)) && len(unpaid) > 0 {
		share := quo(remaining, decimal.NewFromInt(int64(len(unpaid))))
		var stillShort []ChildDue
		for _, c := range unpaid {
			shortfall := c.Due.Sub(alloc[c.StudentID])
			add := share.Min(shortfall)
			alloc[c.StudentID] = alloc[c.StudentID].Add(add)
			remaining = remaining.Sub(add)
			if alloc[c.StudentID].LessThan(c.Due) {
				stillShort = append(stillShort, c)
			}
		}
		if len(stillShort) == len(unpaid) && !share.IsPositive() {
			break
		}
		unpaid = stillShort
	}

	return alloc
}

// quo truncates the quotient so shares never add up to more than the payment.
func quo(a generic.Amount, b decimal.Decimal) generic.Amount {
	q, _ := a.Value.QuoRem(b, quotientPrecision)
	return generic.NewAmountFromDecimal(q)
}

const quotientPrecision = 16
