package models

import "time"

// Parent is a top-level Xero entity row, upserted by its stable remote identifier.
type Parent interface {
	TableName() string
	KeyColumn() string
}

// Account is a chart-of-accounts entry.
type Account struct {
	AccountID      string     `gorm:"column:account_id;primaryKey"`
	Code           *string    `gorm:"column:code"`
	Name           string     `gorm:"column:name"`
	AccountType    string     `gorm:"column:account_type"`
	Description    *string    `gorm:"column:description"`
	EnablePayments bool       `gorm:"column:enable_payments"`
	Status         string     `gorm:"column:status"`
	UpdatedDateUTC *time.Time `gorm:"column:updated_at"`
	SyncedAt       time.Time  `gorm:"column:synced_at"`
}

func (Account) TableName() string { return "xero_accounts" }
func (Account) KeyColumn() string { return "account_id" }

// Contact is a customer or supplier.
type Contact struct {
	ContactID      string     `gorm:"column:contact_id;primaryKey"`
	Name           string     `gorm:"column:name"`
	EmailAddress   *string    `gorm:"column:email_address"`
	Phones         JSON       `gorm:"column:phones;type:jsonb"`
	Addresses      JSON       `gorm:"column:addresses;type:jsonb"`
	TaxNumber      *string    `gorm:"column:tax_number"`
	ContactStatus  string     `gorm:"column:contact_status"`
	UpdatedDateUTC *time.Time `gorm:"column:updated_at"`
	SyncedAt       time.Time  `gorm:"column:synced_at"`
}

func (Contact) TableName() string { return "xero_contacts" }
func (Contact) KeyColumn() string { return "contact_id" }

type Invoice struct {
	InvoiceID           string     `gorm:"column:invoice_id;primaryKey"`
	InvoiceNumber       *string    `gorm:"column:invoice_number"`
	ContactID           *string    `gorm:"column:contact_id;index"`
	InvoiceType         string     `gorm:"column:invoice_type"`
	Status              string     `gorm:"column:status"`
	LineAmountTypes     *string    `gorm:"column:line_amount_types"`
	InvoiceDate         *time.Time `gorm:"column:invoice_date"`
	DueDate             *time.Time `gorm:"column:due_date"`
	ExpectedPaymentDate *time.Time `gorm:"column:expected_payment_date"`
	Reference           *string    `gorm:"column:reference"`
	BrandingThemeID     *string    `gorm:"column:branding_theme_id"`
	SubTotal            float64    `gorm:"column:sub_total"`
	TotalTax            float64    `gorm:"column:total_tax"`
	Total               float64    `gorm:"column:total"`
	CurrencyCode        *string    `gorm:"column:currency_code"`
	UpdatedDateUTC      *time.Time `gorm:"column:updated_at"`
	SyncedAt            time.Time  `gorm:"column:synced_at"`
}

func (Invoice) TableName() string { return "xero_invoices" }
func (Invoice) KeyColumn() string { return "invoice_id" }

// InvoiceItem is keyed by "<InvoiceID>_<LineItemID>"; Xero line item ids are only unique per invoice.
type InvoiceItem struct {
	InvoiceItemID string    `gorm:"column:invoice_item_id;primaryKey"`
	InvoiceID     string    `gorm:"column:invoice_id;index"`
	Description   *string   `gorm:"column:description"`
	Quantity      float64   `gorm:"column:quantity"`
	UnitAmount    float64   `gorm:"column:unit_amount"`
	TaxType       *string   `gorm:"column:tax_type"`
	TaxAmount     float64   `gorm:"column:tax_amount"`
	LineAmount    float64   `gorm:"column:line_amount"`
	AccountCode   *string   `gorm:"column:account_code"`
	AccountID     *string   `gorm:"column:account_id"`
	SyncedAt      time.Time `gorm:"column:synced_at"`
}

func (InvoiceItem) TableName() string { return "xero_invoice_items" }

type Journal struct {
	JournalID      string     `gorm:"column:journal_id;primaryKey"`
	JournalNumber  int64      `gorm:"column:journal_number;index"`
	Reference      *string    `gorm:"column:reference"`
	SourceID       *string    `gorm:"column:source_id"`
	SourceType     *string    `gorm:"column:source_type"`
	JournalDate    *time.Time `gorm:"column:journal_date"`
	CreatedDateUTC *time.Time `gorm:"column:created_at"`
	SyncedAt       time.Time  `gorm:"column:synced_at"`
}

func (Journal) TableName() string { return "xero_journals" }
func (Journal) KeyColumn() string { return "journal_id" }

// JournalLine is keyed by "<JournalID>_<JournalLineID>".
type JournalLine struct {
	JournalLineID  string    `gorm:"column:journal_line_id;primaryKey"`
	JournalID      string    `gorm:"column:journal_id;index"`
	AccountID      *string   `gorm:"column:account_id"`
	AccountCode    *string   `gorm:"column:account_code"`
	Description    *string   `gorm:"column:description"`
	NetAmount      float64   `gorm:"column:net_amount"`
	TaxAmount      float64   `gorm:"column:tax_amount"`
	TrackingName   *string   `gorm:"column:tracking_name"`
	TrackingOption *string   `gorm:"column:tracking_option"`
	SyncedAt       time.Time `gorm:"column:synced_at"`
}

func (JournalLine) TableName() string { return "xero_journal_lines" }

// ChildID builds the composite identifier for a child row.
func ChildID(parentID, childID string) string {
	return parentID + "_" + childID
}

// FetchedRecord is one decoded parent row plus its derived child rows.
// It only lives for the duration of a batch.
type FetchedRecord struct {
	ID     string
	Key    int64 // ordinal key, journals only
	Parent Parent
	// Children is a pointer to a slice of child rows, nil when the parent has none.
	Children   interface{}
	ChildCount int
}
