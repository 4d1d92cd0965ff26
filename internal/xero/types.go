package xero

import "encoding/json"

// Resource names and the keys of the arrays they return.
const (
	ResourceAccounts = "Accounts"
	ResourceContacts = "Contacts"
	ResourceInvoices = "Invoices"
	ResourceJournals = "Journals"
)

type Account struct {
	AccountID      string `json:"AccountID"`
	Code           string `json:"Code"`
	Name           string `json:"Name"`
	Type           string `json:"Type"`
	Description    string `json:"Description"`
	EnablePayments bool   `json:"EnablePaymentsToAccount"`
	Status         string `json:"Status"`
	UpdatedDateUTC string `json:"UpdatedDateUTC"`
}

type Contact struct {
	ContactID      string          `json:"ContactID"`
	Name           string          `json:"Name"`
	EmailAddress   string          `json:"EmailAddress"`
	Phones         json.RawMessage `json:"Phones"`
	Addresses      json.RawMessage `json:"Addresses"`
	TaxNumber      string          `json:"TaxNumber"`
	ContactStatus  string          `json:"ContactStatus"`
	UpdatedDateUTC string          `json:"UpdatedDateUTC"`
}

type Invoice struct {
	InvoiceID       string `json:"InvoiceID"`
	InvoiceNumber   string `json:"InvoiceNumber"`
	Type            string `json:"Type"`
	Status          string `json:"Status"`
	LineAmountTypes string `json:"LineAmountTypes"`
	Contact         struct {
		ContactID string `json:"ContactID"`
	} `json:"Contact"`
	Date                string     `json:"Date"`
	DueDate             string     `json:"DueDate"`
	ExpectedPaymentDate string     `json:"ExpectedPaymentDate"`
	Reference           string     `json:"Reference"`
	BrandingThemeID     string     `json:"BrandingThemeID"`
	SubTotal            float64    `json:"SubTotal"`
	TotalTax            float64    `json:"TotalTax"`
	Total               float64    `json:"Total"`
	CurrencyCode        string     `json:"CurrencyCode"`
	UpdatedDateUTC      string     `json:"UpdatedDateUTC"`
	LineItems           []LineItem `json:"LineItems"`
}

type LineItem struct {
	LineItemID  string  `json:"LineItemID"`
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	TaxType     string  `json:"TaxType"`
	TaxAmount   float64 `json:"TaxAmount"`
	LineAmount  float64 `json:"LineAmount"`
	AccountCode string  `json:"AccountCode"`
	AccountID   string  `json:"AccountID"`
}

type Journal struct {
	JournalID      string        `json:"JournalID"`
	JournalNumber  int64         `json:"JournalNumber"`
	Reference      string        `json:"Reference"`
	SourceID       string        `json:"SourceID"`
	SourceType     string        `json:"SourceType"`
	JournalDate    string        `json:"JournalDate"`
	CreatedDateUTC string        `json:"CreatedDateUTC"`
	JournalLines   []JournalLine `json:"JournalLines"`
}

type JournalLine struct {
	JournalLineID      string  `json:"JournalLineID"`
	AccountID          string  `json:"AccountID"`
	AccountCode        string  `json:"AccountCode"`
	Description        string  `json:"Description"`
	NetAmount          float64 `json:"NetAmount"`
	TaxAmount          float64 `json:"TaxAmount"`
	TrackingCategories []struct {
		Name   string `json:"Name"`
		Option string `json:"Option"`
	} `json:"TrackingCategories"`
}

// Response is a decoded top-level API response object.
type Response map[string]json.RawMessage

// Records returns the raw elements of the named array, nil when it is absent.
func (r Response) Records(key string) ([]json.RawMessage, error) {
	raw, ok := r[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}
