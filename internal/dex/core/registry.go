package core

// Set - упорядоченный набор площадок продукта. Порядок задаёт тай-брейк при ранжировании.
type Set struct {
	venues []Venue
}

func NewSet(vs ...Venue) Set {
	out := make([]Venue, len(vs))
	copy(out, vs)
	return Set{venues: out}
}

func (s Set) All() []Venue {
	out := make([]Venue, len(s.venues))
	copy(out, s.venues)
	return out
}

func (s Set) Len() int { return len(s.venues) }

func (s Set) Get(id VenueID) (Venue, bool) {
	for _, v := range s.venues {
		if v.ID == id {
			return v, true
		}
	}
	return Venue{}, false
}

// Enabled keeps only the listed venues, preserving set order. Empty ids keeps everything.
func (s Set) Enabled(ids []VenueID) Set {
	if len(ids) == 0 {
		return s
	}
	want := make(map[VenueID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]Venue, 0, len(ids))
	for _, v := range s.venues {
		if want[v.ID] {
			out = append(out, v)
		}
	}
	return Set{venues: out}
}
