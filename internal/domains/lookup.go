// Package domains answers whether an email address belongs to a recognised
// academic institution.
package domains

import (
	"strings"
	"sync"
)

// Institution is one row of the approved-domain dataset.
type Institution struct {
	Domain  string `json:"domain"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Table is an immutable domain index, safe for concurrent reads.
type Table struct {
	byDomain map[string]Institution
}

// Build indexes records by normalised domain. Records with an empty domain
// are skipped; on duplicates the first record wins.
func Build(records []Institution) *Table {
	t := &Table{byDomain: make(map[string]Institution, len(records))}
	for _, r := range records {
		d := NormalizeDomain(r.Domain)
		if d == "" {
			continue
		}
		if _, dup := t.byDomain[d]; dup {
			continue
		}
		r.Domain = d
		r.Name = strings.TrimSpace(r.Name)
		r.Country = strings.TrimSpace(r.Country)
		t.byDomain[d] = r
	}
	return t
}

// Lazy defers building until first use. Concurrent first calls share one
// load; a successful table is kept for good, while a failed load is retried
// on the next call.
func Lazy(load func() ([]Institution, error)) func() (*Table, error) {
	var (
		mu    sync.Mutex
		table *Table
	)
	return func() (*Table, error) {
		mu.Lock()
		defer mu.Unlock()

		if table != nil {
			return table, nil
		}
		records, err := load()
		if err != nil {
			return nil, err
		}
		table = Build(records)
		return table, nil
	}
}

func (t *Table) Len() int {
	return len(t.byDomain)
}

func (t *Table) IsApproved(email string) bool {
	_, ok := t.Institution(email)
	return ok
}

func (t *Table) Institution(email string) (Institution, bool) {
	d, ok := DomainOf(email)
	if !ok {
		return Institution{}, false
	}
	inst, ok := t.byDomain[d]
	return inst, ok
}

// DomainOf extracts the normalised domain after the last '@'.
func DomainOf(email string) (string, bool) {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return "", false
	}
	d := NormalizeDomain(email[at+1:])
	return d, d != ""
}

func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimLeft(d, "@.")
	return strings.TrimRight(d, ".")
}
