package features

import "sort"

// Balance keeps a single perspective of every contest, alternating between
// the winner's and the loser's view so that the label is evenly split.
// Contests are visited by team pair ("a-b", names sorted) and then date,
// since the running win/loss count decides which side is kept. The result
// is ordered newest first and drops rows with no prior history.
func Balance(rows []Row) []Row {
	order := make([]string, 0, len(rows))
	groups := make(map[string][]Row, len(rows))
	for _, r := range rows {
		key := r.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := groups[order[i]][0], groups[order[j]][0]
		if pa, pb := teamPair(a), teamPair(b); pa != pb {
			return pa < pb
		}
		return a.Date.Before(b.Date)
	})

	wins, losses := 0, 0
	out := make([]Row, 0, len(order))
	for _, key := range order {
		group := groups[key]
		chosen := group[0]

		if len(group) > 1 {
			p1, p2 := group[0], group[1]
			if p1.Result != p2.Result {
				if wins <= losses {
					chosen = pickResult(p1, p2, true)
				} else {
					chosen = pickResult(p1, p2, false)
				}
			}
		}

		if chosen.Result {
			wins++
		} else {
			losses++
		}
		out = append(out, chosen)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })

	kept := out[:0]
	for _, r := range out {
		if r.HasHistory {
			kept = append(kept, r)
		}
	}
	return kept
}

func teamPair(r Row) string {
	a, b := r.Entity, r.Opponent
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

func pickResult(a, b Row, won bool) Row {
	if a.Result == won {
		return a
	}
	return b
}
