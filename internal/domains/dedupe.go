package domains

// Duplicate records a dataset row dropped because its domain was already
// claimed by an earlier institution.
type Duplicate struct {
	Domain  string
	Kept    Institution
	Dropped Institution
}

// Dedupe returns records with one institution per normalised domain, keeping
// the first occurrence and preserving input order.
func Dedupe(records []Institution) ([]Institution, []Duplicate) {
	seen := make(map[string]int, len(records))
	out := make([]Institution, 0, len(records))
	var dups []Duplicate

	for _, r := range records {
		d := NormalizeDomain(r.Domain)
		if d == "" {
			continue
		}
		r.Domain = d

		if i, ok := seen[d]; ok {
			dups = append(dups, Duplicate{Domain: d, Kept: out[i], Dropped: r})
			continue
		}
		seen[d] = len(out)
		out = append(out, r)
	}

	return out, dups
}
