package compliance

import (
	"testing"
)

// TestUserColumnRegistry resolves registered tables and rejects unknown ones
func TestUserColumnRegistry(t *testing.T) {
	cases := map[Table]string{
		TableUsers:           "id",
		TableChatMessages:    "sender_id",
		TableLeads:           "owner_id",
		TableBillingInvoices: "customer_id",
		TableUserProfiles:    "user_id",
	}

	for table, want := range cases {
		column, err := UserColumn(table)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", table, err)
		}
		if column != want {
			t.Errorf("table %s should key on %s, got %s", table, want, column)
		}
	}

	if _, err := UserColumn(Table("unregistered_table")); err == nil {
		t.Error("unregistered table should be a hard error, never a default column")
	}
}

// TestErasureOrderCoversRegistry ensures every registered table is erased and
// the identity table goes last
func TestErasureOrderCoversRegistry(t *testing.T) {
	if len(erasureOrder) != len(userColumns) {
		t.Errorf("erasure order covers %d tables, registry has %d", len(erasureOrder), len(userColumns))
	}

	seen := make(map[Table]bool, len(erasureOrder))
	for _, table := range erasureOrder {
		if seen[table] {
			t.Errorf("table %s appears twice in the erasure order", table)
		}
		seen[table] = true
		if _, err := UserColumn(table); err != nil {
			t.Errorf("erasure order references unregistered table %s", table)
		}
	}

	if erasureOrder[len(erasureOrder)-1] != TableUsers {
		t.Error("the identity table must be erased last")
	}
}

// TestRetentionCategoriesOverrides applies overrides without mutating defaults
func TestRetentionCategoriesOverrides(t *testing.T) {
	categories := RetentionCategories(map[string]int{
		"chat_transcripts": 30,
		"unknown_category": 5,
		"analytics":        0, // zero keeps the default
	})

	byName := make(map[string]int, len(categories))
	for _, category := range categories {
		byName[category.Name] = category.RetentionDays
	}

	if byName["chat_transcripts"] != 30 {
		t.Errorf("override should apply, got %d", byName["chat_transcripts"])
	}
	if byName["analytics"] != 180 {
		t.Errorf("zero override should keep the default, got %d", byName["analytics"])
	}
	if byName["billing"] != 3650 {
		t.Errorf("untouched category should keep its default, got %d", byName["billing"])
	}

	// Defaults stay pristine for the next caller.
	fresh := RetentionCategories(nil)
	for _, category := range fresh {
		if category.Name == "chat_transcripts" && category.RetentionDays != 90 {
			t.Errorf("defaults should be unaffected by earlier overrides, got %d", category.RetentionDays)
		}
	}
}

// TestLegalBasisMapping resolves known consent types and rejects unknown ones
func TestLegalBasisMapping(t *testing.T) {
	basis, err := LegalBasis(ConsentEssential)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if basis != "contract" {
		t.Errorf("essential consent should rest on contract, got %s", basis)
	}

	basis, err = LegalBasis(ConsentMarketing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if basis != "consent" {
		t.Errorf("marketing should rest on consent, got %s", basis)
	}

	if _, err := LegalBasis("telepathy"); err == nil {
		t.Error("unknown consent type should be rejected")
	}
}
