package dice

import (
	"fmt"
	"strings"
)

// Breakdown derives a human-readable arithmetic breakdown for a resolved
// roll. It is read-only and never part of resolution.
//
// The shape depends on what happened:
//   - plain pool: "= 9" or "= 9 + 2 = 11"
//   - critical success: base sum and chain sum shown separately
//   - critical failure: raw non-wild sum minus the cancelled sum
//   - bonus dice add their own "+ n" term when nonzero
//
// Postcondition: Returns "" when no breakdown applies (a single die with no
// modifier, no chain, no cancellation) — the raw face is sufficient.
func Breakdown(roll Roll) string {
	modifier := roll.Modifier

	var nonCp, cp []Die
	for _, d := range roll.Dice {
		if d.IsCpDie {
			cp = append(cp, d)
		} else {
			nonCp = append(nonCp, d)
		}
	}
	cpSum := faceSum(cp, func(Die) bool { return true })

	critSuccess := false
	critFail := false
	cancelled := false
	for _, d := range roll.Dice {
		if d.ChainDepth != nil && *d.ChainDepth >= 1 {
			critSuccess = true
		}
		if d.CanExplodeFail && d.Face() == FailValue {
			critFail = true
		}
		if d.IsCancelled {
			cancelled = true
		}
	}

	totalFaces := faceSum(roll.Dice, func(d Die) bool { return !d.IsCancelled })

	if critSuccess || critFail || len(cp) > 0 {
		var parts []string

		if critFail {
			// The wild die is excluded from the failure math; only the
			// plain dice are shown, minus whatever got cancelled.
			rawSum := faceSum(nonCp, func(d Die) bool { return !d.CanExplodeFail })
			cancelledSum := faceSum(nonCp, func(d Die) bool { return !d.CanExplodeFail && d.IsCancelled })
			switch {
			case cancelledSum > 0:
				parts = append(parts, fmt.Sprintf("%d − %d", rawSum, cancelledSum))
			case rawSum > 0:
				parts = append(parts, fmt.Sprintf("%d", rawSum))
			}
		} else {
			baseSum := faceSum(nonCp, func(d Die) bool { return d.ChainDepth == nil || *d.ChainDepth == 0 })
			chainSum := faceSum(nonCp, func(d Die) bool { return d.ChainDepth != nil && *d.ChainDepth >= 1 })
			if chainSum > 0 {
				parts = append(parts, fmt.Sprintf("%d + %d", baseSum, chainSum))
			} else {
				parts = append(parts, fmt.Sprintf("%d", baseSum))
			}
		}

		if cpSum > 0 {
			parts = append(parts, fmt.Sprintf("+ %d", cpSum))
		}
		if modifier > 0 {
			parts = append(parts, fmt.Sprintf("+ %d", modifier))
		}
		parts = append(parts, fmt.Sprintf("= %d", totalFaces+modifier))
		return strings.Join(parts, " ")
	}

	var parts []string
	if len(roll.Dice) > 1 || cancelled {
		parts = append(parts, fmt.Sprintf("= %d", totalFaces))
	}
	if modifier > 0 {
		parts = append(parts, fmt.Sprintf("+ %d", modifier))
		parts = append(parts, fmt.Sprintf("= %d", totalFaces+modifier))
	}
	return strings.Join(parts, " ")
}

// CopyText renders the roll as a single clipboard-ready line:
//
//	"3d+2 = [5] [2-canceled] [6-cp] + 2 = 13"
//
// Postcondition: Returns "" when the roll cannot be scored.
func CopyText(roll Roll) string {
	result, err := Score(roll)
	if err != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(roll.Text)
	b.WriteString(" =")

	for _, d := range roll.Dice {
		if d.FinalNumber == nil {
			continue
		}
		switch {
		case d.IsCancelled:
			fmt.Fprintf(&b, " [%d-canceled]", *d.FinalNumber)
		case d.IsCpDie:
			fmt.Fprintf(&b, " [%d-cp]", *d.FinalNumber)
		default:
			fmt.Fprintf(&b, " [%d]", *d.FinalNumber)
		}
	}

	if roll.Modifier > 0 {
		fmt.Fprintf(&b, " + %d", roll.Modifier)
	}
	fmt.Fprintf(&b, " = %d", result)
	return b.String()
}

func faceSum(dice []Die, keep func(Die) bool) int {
	sum := 0
	for _, d := range dice {
		if d.FinalNumber == nil || !keep(d) {
			continue
		}
		sum += *d.FinalNumber
	}
	return sum
}
