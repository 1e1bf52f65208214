package stats

// Merge combines an incoming game line into the stored season line for
// one player under the category's per-column rules: counting columns
// add with nil as zero, longest columns keep the running maximum with
// nil excluded, and the passing composite merges via MergeFraction.
// A nil existing line means first appearance; incoming values are taken
// at face value with counting columns zero-filled.
//
// Merge is pure and the returned line shares no pointers with its inputs.
func Merge(c Category, existing *Line, incoming Line) Line {
	out := NewLine()

	if existing == nil {
		for _, f := range Schema(c) {
			switch f.Kind {
			case KindCount:
				out.Values[f.Column] = int64Ptr(orZero(incoming.Value(f.Column)))
			case KindLongest:
				out.Values[f.Column] = cloneInt(incoming.Value(f.Column))
			case KindFraction:
				out.Fraction = cloneStr(incoming.Fraction)
			}
		}
		return out
	}

	for _, f := range Schema(c) {
		switch f.Kind {
		case KindCount:
			out.Values[f.Column] = int64Ptr(orZero(existing.Value(f.Column)) + orZero(incoming.Value(f.Column)))
		case KindLongest:
			out.Values[f.Column] = maxInt(existing.Value(f.Column), incoming.Value(f.Column))
		case KindFraction:
			out.Fraction = MergeFraction(existing.Fraction, incoming.Fraction)
		}
	}
	return out
}

// Apply merges one incoming game record into the stored snapshot for its
// player (nil means first appearance) and returns the combined state.
// Numeric columns follow Merge; identity fields are overwritten with the
// incoming record's values, last write wins.
func Apply(existing *Snapshot, rec GameRecord) Snapshot {
	var line *Line
	if existing != nil {
		line = &existing.Line
	}
	return Snapshot{
		Identity: cloneIdentity(rec.Identity),
		Line:     Merge(rec.Category, line, rec.Line),
	}
}

func maxInt(a, b *int64) *int64 {
	if a == nil {
		return cloneInt(b)
	}
	if b == nil {
		return cloneInt(a)
	}
	if *a >= *b {
		return int64Ptr(*a)
	}
	return int64Ptr(*b)
}

func int64Ptr(v int64) *int64 { return &v }

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneIdentity(id Identity) Identity {
	return Identity{
		TeamID:      cloneInt(id.TeamID),
		TeamName:    cloneStr(id.TeamName),
		PlayerID:    cloneInt(id.PlayerID),
		PlayerName:  cloneStr(id.PlayerName),
		HeadshotURL: cloneStr(id.HeadshotURL),
	}
}
