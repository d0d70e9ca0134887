package dice

import (
	"sort"
	"time"
)

// Resolve expands a freshly created dice set into a fully resolved Roll.
//
// Every die is assigned its final face and display duration immediately.
// A wild die rolling SuccessValue spawns an explosion chain; a wild die
// rolling FailValue is cancelled at draw time and contributes a cancellation
// budget applied to the highest non-exploding dice afterwards.
//
// Precondition: src must be non-nil; diceCount == len(initial); initial must
// come from NewDiceSet (exactly the last die wild).
// Postcondition: Every die in the returned Roll has a non-nil FinalNumber;
// no further mutation is needed by the caller.
func Resolve(src Source, text string, initial []Die, modifier, diceCount int) Roll {
	all := make([]Die, 0, len(initial))

	nextID := 0
	for _, d := range initial {
		if d.ID >= nextID {
			nextID = d.ID + 1
		}
	}

	for _, d := range initial {
		face := Face(src)
		resolved := d
		resolved.FinalNumber = intPtr(face)
		resolved.StopAfter = Duration(src)
		// A failing wild die is cancelled immediately; it is still
		// displayed but contributes nothing.
		resolved.IsCancelled = d.CanExplodeFail && face == FailValue
		if d.CanExplodeSucceed {
			resolved.ChainDepth = intPtr(0)
		}
		all = append(all, resolved)

		if d.CanExplodeSucceed && face == SuccessValue && !resolved.IsCancelled {
			chain := rollChain(src, &nextID, false)
			all = append(all, chain...)
		}
	}

	all = applyCancellation(all)

	now := time.Now()
	return Roll{
		ID:        nextRollID(now),
		Text:      text,
		DiceCount: diceCount,
		Modifier:  modifier,
		Date:      now,
		Dice:      all,
	}
}

// rollChain draws chain dice starting at depth 1 until the first non-success
// face, bounded by MaxChainLength. At least one die is always produced.
func rollChain(src Source, nextID *int, cp bool) []Die {
	var chain []Die
	for depth := 1; depth <= MaxChainLength; depth++ {
		face := Face(src)
		chain = append(chain, Die{
			ID:                *nextID,
			FinalNumber:       intPtr(face),
			StopAfter:         Duration(src),
			IsExploding:       true,
			CanExplodeSucceed: true,
			IsCpDie:           cp,
			ChainDepth:        intPtr(depth),
		})
		*nextID++
		if face != SuccessValue {
			break
		}
	}
	return chain
}

// applyCancellation marks the top-k non-exploding dice cancelled, where k is
// the number of wild dice that rolled FailValue. Ties break by original
// order (first seen wins). When fewer than k dice are eligible, all of them
// are cancelled.
func applyCancellation(all []Die) []Die {
	budget := 0
	for _, d := range all {
		if d.CanExplodeFail && d.Face() == FailValue {
			budget++
		}
	}
	if budget == 0 {
		return all
	}

	eligible := make([]int, 0, len(all))
	for i, d := range all {
		if !d.IsExploding && !d.IsCancelled {
			eligible = append(eligible, i)
		}
	}
	sort.SliceStable(eligible, func(a, b int) bool {
		return all[eligible[a]].Face() > all[eligible[b]].Face()
	})

	if budget > len(eligible) {
		budget = len(eligible)
	}
	for _, idx := range eligible[:budget] {
		all[idx].IsCancelled = true
	}
	return all
}

// ResolveNotation parses a notation string, builds the dice set, and
// resolves it in one call.
//
// Precondition: src must be non-nil.
// Postcondition: Returns a fully resolved Roll or a notation parse error.
func ResolveNotation(src Source, text string) (Roll, error) {
	n, err := ParseNotation(text)
	if err != nil {
		return Roll{}, err
	}
	return Resolve(src, text, NewDiceSet(n.DiceCount), n.Modifier, n.DiceCount), nil
}

// AppendBonusDice resolves count character-point bonus dice and appends them
// to roll. Bonus dice chain on SuccessValue like wild dice but never cancel
// and are never cancelled. IDs continue from the roll's current maximum.
//
// Precondition: src must be non-nil; count must be >= 0; roll must be fully
// resolved.
// Postcondition: Returns the extended Roll and the newly appended dice.
func AppendBonusDice(src Source, roll Roll, count int) (Roll, []Die) {
	nextID := roll.MaxDieID() + 1
	appended := make([]Die, 0, count)

	for i := 0; i < count; i++ {
		face := Face(src)
		appended = append(appended, Die{
			ID:                nextID,
			FinalNumber:       intPtr(face),
			StopAfter:         Duration(src),
			IsExploding:       true,
			CanExplodeSucceed: true,
			IsCpDie:           true,
			ChainDepth:        intPtr(0),
		})
		nextID++
		if face == SuccessValue {
			chain := rollChain(src, &nextID, true)
			appended = append(appended, chain...)
		}
	}

	extended := roll
	extended.Dice = make([]Die, 0, len(roll.Dice)+len(appended))
	extended.Dice = append(extended.Dice, roll.Dice...)
	extended.Dice = append(extended.Dice, appended...)
	return extended, appended
}
