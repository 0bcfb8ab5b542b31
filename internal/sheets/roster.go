package sheets

import (
	"strings"

	"github.com/cloud-shuttle/muster/pkg/types"
)

// rosterSynonyms maps roster-tab headers onto contact fields
var rosterSynonyms = map[string]string{
	"id":     "id",
	"email":  "id",
	"member": "id",

	"name":      "name",
	"full name": "name",

	"channel": "channel",
	"chat id": "channel",

	"handle":   "handle",
	"username": "handle",
}

// ParseRoster builds the contact roster from the reserved roster tab.
// Rows without a name are skipped; a missing channel just makes the
// contact unreachable.
func ParseRoster(rows [][]string) []types.Contact {
	if len(rows) == 0 {
		return nil
	}

	indexes := make(map[string]int)
	for i, cell := range rows[0] {
		field, ok := rosterSynonyms[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			continue
		}
		if _, seen := indexes[field]; !seen {
			indexes[field] = i
		}
	}

	cell := func(row []string, field string) string {
		i, ok := indexes[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var contacts []types.Contact
	for _, row := range rows[1:] {
		c := types.Contact{
			ID:      cell(row, "id"),
			Name:    cell(row, "name"),
			Channel: cell(row, "channel"),
			Handle:  cell(row, "handle"),
		}
		if c.Name == "" {
			continue
		}
		if c.ID == "" {
			c.ID = strings.ToLower(c.Name)
		}
		contacts = append(contacts, c)
	}
	return contacts
}

// FindByName resolves a roster contact by display name,
// case-insensitively. Returns false when no roster entry matches.
func FindByName(roster []types.Contact, name string) (types.Contact, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return types.Contact{}, false
	}
	for _, c := range roster {
		if strings.ToLower(c.Name) == needle {
			return c, true
		}
	}
	return types.Contact{}, false
}
