package model

// Damage is the damage u deals in one round of combat.
func (u Units) Damage() int {
	d := 0
	u.Each(func(k Unit, n int) { d += k.Damage() * n })
	return d
}

// absorb applies damage kind by kind in defenseOrder. Leftover damage smaller
// than the next kind's health is lost.
func (u Units) absorb(damage int) Units {
	for _, k := range defenseOrder {
		if damage <= 0 {
			break
		}
		n := u.Available(k)
		if n == 0 {
			continue
		}
		h := k.Health()
		killed := damage / h
		if killed > n {
			killed = n
		}
		u.Subtract(k, killed)
		damage -= killed * h
		if killed < n {
			break
		}
	}
	return u
}

// Fight resolves one simultaneous combat round. Both sides strike with their
// pre-fight strength, so Fight(b, a) is the mirror image of Fight(a, b).
func Fight(a, b Units) (Units, Units) {
	da := a.Damage()
	db := b.Damage()
	return a.absorb(db), b.absorb(da)
}

// Battle repeats Fight until a side is wiped out or a round changes nothing.
func Battle(a, b Units) (Units, Units) {
	for !a.IsEmpty() && !b.IsEmpty() {
		na, nb := Fight(a, b)
		if na == a && nb == b {
			break
		}
		a, b = na, nb
	}
	return a, b
}
