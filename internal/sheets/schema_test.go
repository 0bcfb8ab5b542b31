package sheets

import "testing"

func TestMapHeaderSynonyms(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		row    []string
		want   Row
	}{
		{
			name:   "canonical headers",
			header: []string{"Task", "Owner", "Priority", "Effort", "Status", "Due Date"},
			row:    []string{"Write report", "Alice", "P1", "3", "In progress", "2025-01-10"},
			want: Row{
				Description: "Write report",
				Owner:       "Alice",
				Priority:    "P1",
				Points:      "3",
				Status:      "In progress",
				Due:         "2025-01-10",
			},
		},
		{
			name:   "alternate synonyms and casing",
			header: []string{"ITEM", "assignee", "prio", "Size", "deadline", "Sprint"},
			row:    []string{"Ship feature", "Bob", "P2", "5", "10/01/2025", "M2"},
			want: Row{
				Description: "Ship feature",
				Owner:       "Bob",
				Priority:    "P2",
				Points:      "5",
				Due:         "10/01/2025",
				Milestone:   "M2",
			},
		},
		{
			name:   "short row leaves trailing fields empty",
			header: []string{"Task", "Owner", "Due"},
			row:    []string{"Only a description"},
			want:   Row{Description: "Only a description"},
		},
		{
			name:   "unknown headers ignored",
			header: []string{"Task", "Favourite colour", "Owner"},
			row:    []string{"Do thing", "teal", "Carol"},
			want:   Row{Description: "Do thing", Owner: "Carol"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapHeader(tt.header).Record(tt.row)
			if got != tt.want {
				t.Errorf("Record() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestMapHeaderFirstMatchWins(t *testing.T) {
	m := MapHeader([]string{"Task", "Description"})
	got := m.Record([]string{"first", "second"})
	if got.Description != "first" {
		t.Errorf("Description = %q; want the first matching column", got.Description)
	}
}

func TestParseRoster(t *testing.T) {
	rows := [][]string{
		{"Name", "Email", "Chat ID", "Username"},
		{"Alice", "alice@example.com", "1001", "@alice"},
		{"Bob", "bob@example.com", "", "@bob"},
		{"", "ghost@example.com", "1003", ""},
		{"Carol", "", "1004", ""},
	}

	contacts := ParseRoster(rows)
	if len(contacts) != 3 {
		t.Fatalf("got %d contacts; want 3 (nameless row skipped)", len(contacts))
	}

	if contacts[0].ID != "alice@example.com" || contacts[0].Channel != "1001" {
		t.Errorf("alice = %+v; want id and channel mapped", contacts[0])
	}
	if contacts[1].Reachable() {
		t.Error("bob has no channel but reports reachable")
	}
	if contacts[2].ID != "carol" {
		t.Errorf("carol id = %q; want lowercased name fallback", contacts[2].ID)
	}
}

func TestFindByName(t *testing.T) {
	roster := ParseRoster([][]string{
		{"Name", "Email"},
		{"Alice", "alice@example.com"},
	})

	if c, ok := FindByName(roster, "  ALICE "); !ok || c.ID != "alice@example.com" {
		t.Errorf("FindByName(ALICE) = %+v, %v; want alice", c, ok)
	}
	if _, ok := FindByName(roster, "nobody"); ok {
		t.Error("FindByName(nobody) matched")
	}
	if _, ok := FindByName(roster, ""); ok {
		t.Error("FindByName(empty) matched")
	}
}
