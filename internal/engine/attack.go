package engine

// AttackState carries the counters the attack formula reads and advances
// between locks.
type AttackState struct {
	Combo          int
	BackToBack     int
	LastDifficult  bool
	PendingGarbage int
}

// Attack is the outcome of one lock.
type Attack struct {
	Lines     int // attack lines to send
	Cancelled int // garbage lines offset by this clear
}

const (
	maxComboBonus = 10
	maxB2BBonus   = 3
	difficultRows = 4
)

func baseAttack(rows int) int {
	switch {
	case rows <= 1:
		return 0
	case rows == 2:
		return 1
	case rows == 3:
		return 2
	default:
		return 4
	}
}

// ResolveAttack applies the combo/back-to-back formula to a lock that cleared
// `cleared` rows. Counters advance on the raw row count; pending garbage
// cancels raw rows before any attack is computed, so a fully cancelled clear
// sends nothing.
func ResolveAttack(cleared int, st AttackState) (Attack, AttackState) {
	if cleared <= 0 {
		st.Combo = 0
		return Attack{}, st
	}

	st.Combo++

	st.PendingGarbage = max(st.PendingGarbage, 0)
	cancelled := min(st.PendingGarbage, cleared)
	st.PendingGarbage -= cancelled
	effective := cleared - cancelled

	difficult := cleared >= difficultRows
	b2bBonus := 0
	if difficult {
		if st.LastDifficult {
			st.BackToBack++
			b2bBonus = 1
		} else {
			st.BackToBack = 0
		}
	} else {
		st.BackToBack = 0
	}
	st.LastDifficult = difficult

	if effective == 0 {
		return Attack{Cancelled: cancelled}, st
	}

	lines := baseAttack(effective) + b2bBonus
	if st.Combo > 1 {
		lines += min(st.Combo-1, maxComboBonus)
	}
	if st.BackToBack > 1 {
		lines += min(st.BackToBack/2, maxB2BBonus)
	}
	return Attack{Lines: max(lines, 0), Cancelled: cancelled}, st
}
