package portfolio

import "Crypset/internal/model"

// Toggle removes id from w when present and appends it otherwise.
func Toggle(w model.Watchlist, id string) model.Watchlist {
	out := make(model.Watchlist, 0, len(w)+1)
	found := false
	for _, cur := range w {
		if cur == id {
			found = true
			continue
		}
		out = append(out, cur)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

// Contains reports whether id is on the watchlist.
func Contains(w model.Watchlist, id string) bool {
	for _, cur := range w {
		if cur == id {
			return true
		}
	}
	return false
}
