package compliance

import (
	"fmt"

	"github.com/GoDataGuard/go-data-guard/models"
)

// Table identifies a relational-store table holding personal data. The
// registry is typed so a missing table→column mapping is caught by
// UserColumn at the call site instead of silently defaulting to the wrong
// column.
type Table string

const (
	TableUsers                Table = "users"
	TableUserProfiles         Table = "user_profiles"
	TableChatConversations    Table = "chat_conversations"
	TableChatMessages         Table = "chat_messages"
	TableLeads                Table = "leads"
	TableAnalyticsEvents      Table = "analytics_events"
	TableSupportTickets       Table = "support_tickets"
	TableBillingInvoices      Table = "billing_invoices"
	TableNotificationSettings Table = "notification_settings"
	TableConsentRecords       Table = "consent_records"
)

func (t Table) String() string {
	return string(t)
}

// userColumns maps each registered table to the column identifying the data
// subject. The column name differs per table: the identity table keys on its
// primary key, everything else on a differently-named foreign key.
var userColumns = map[Table]string{
	TableUsers:                "id",
	TableUserProfiles:         "user_id",
	TableChatConversations:    "user_id",
	TableChatMessages:         "sender_id",
	TableLeads:                "owner_id",
	TableAnalyticsEvents:      "actor_id",
	TableSupportTickets:       "requester_id",
	TableBillingInvoices:      "customer_id",
	TableNotificationSettings: "user_id",
	TableConsentRecords:       "user_id",
}

// UserColumn resolves the user-identifying column for a table. An
// unregistered table is an error, never a default.
func UserColumn(t Table) (string, error) {
	column, ok := userColumns[t]
	if !ok {
		return "", fmt.Errorf("table %q has no registered user column", t)
	}
	return column, nil
}

// erasureOrder is the fixed order in which erasure walks the registry.
// Dependent rows go before the identity table so repeated runs produce
// repeatable partial-failure reports.
var erasureOrder = []Table{
	TableChatMessages,
	TableChatConversations,
	TableLeads,
	TableAnalyticsEvents,
	TableSupportTickets,
	TableBillingInvoices,
	TableNotificationSettings,
	TableConsentRecords,
	TableUserProfiles,
	TableUsers,
}

// defaultRetentionCategories is the built-in retention configuration.
// Critical categories carry legally mandated long retention; non-critical
// ones are housekeeping. Config overrides adjust days per category name.
var defaultRetentionCategories = []models.RetentionCategory{
	{
		Name:          "chat_transcripts",
		Tables:        []string{TableChatMessages.String(), TableChatConversations.String()},
		RetentionDays: 90,
	},
	{
		Name:          "analytics",
		Tables:        []string{TableAnalyticsEvents.String()},
		RetentionDays: 180,
	},
	{
		Name:          "leads",
		Tables:        []string{TableLeads.String()},
		RetentionDays: 365,
	},
	{
		Name:          "support",
		Tables:        []string{TableSupportTickets.String()},
		RetentionDays: 730,
	},
	{
		Name:          "billing",
		Tables:        []string{TableBillingInvoices.String()},
		RetentionDays: 3650,
		Critical:      true,
	},
}

// RetentionCategories returns the retention configuration with per-category
// day overrides applied. Called once at engine start.
func RetentionCategories(overrides map[string]int) []models.RetentionCategory {
	categories := make([]models.RetentionCategory, len(defaultRetentionCategories))
	copy(categories, defaultRetentionCategories)

	for i := range categories {
		if days, ok := overrides[categories[i].Name]; ok && days > 0 {
			categories[i].RetentionDays = days
		}
	}

	return categories
}

// exportCategory groups registry tables into the human-meaningful sections of
// a portability export.
type exportCategory struct {
	Name   string
	Tables []Table
}

var exportCategories = []exportCategory{
	{Name: "profile", Tables: []Table{TableUsers, TableUserProfiles}},
	{Name: "conversations", Tables: []Table{TableChatConversations, TableChatMessages}},
	{Name: "business_records", Tables: []Table{TableLeads, TableSupportTickets}},
	{Name: "settings", Tables: []Table{TableNotificationSettings, TableConsentRecords}},
	{Name: "usage", Tables: []Table{TableAnalyticsEvents}},
	{Name: "billing", Tables: []Table{TableBillingInvoices}},
}

// Consent types and the legal basis recorded with each consent row.
const (
	ConsentEssential  = "essential"
	ConsentFunctional = "functional"
	ConsentAnalytics  = "analytics"
	ConsentMarketing  = "marketing"
)

var consentLegalBasis = map[string]string{
	ConsentEssential:  "contract",
	ConsentFunctional: "legitimate_interest",
	ConsentAnalytics:  "consent",
	ConsentMarketing:  "consent",
}

// criticalConsentTypes cannot legally be withdrawn without consequence:
// withdrawal flags a scheduled erasure instead of taking effect immediately.
var criticalConsentTypes = map[string]bool{
	ConsentEssential: true,
}

// LegalBasis resolves the legal basis for a consent type; unknown types are
// a validation error.
func LegalBasis(consentType string) (string, error) {
	basis, ok := consentLegalBasis[consentType]
	if !ok {
		return "", fmt.Errorf("unknown consent type %q", consentType)
	}
	return basis, nil
}
