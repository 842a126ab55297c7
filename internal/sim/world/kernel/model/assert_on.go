//go:build debugassert

package model

import "fmt"

// check panics on states no sanctioned mutation produces.
func (t *Tower) check() {
	if !t.owner.Some() && (t.Units.Contains(Ruler) || t.Units.Contains(Shield)) {
		panic(fmt.Sprintf("unowned tower holds %v", t.Units))
	}
}
