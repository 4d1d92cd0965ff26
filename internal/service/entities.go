package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/vipul43/ledger-sync/internal/models"
	"github.com/vipul43/ledger-sync/internal/xero"
)

type Pagination int

const (
	PaginateNone Pagination = iota
	PaginatePages
	PaginateOffset
)

var errMissingID = errors.New("missing identifier")

// Entity describes how one Xero collection is fetched and stored.
type Entity struct {
	Name       string
	Resource   string
	Pagination Pagination
	// Watermarked entities support "modified since" filtering.
	Watermarked bool
	// Ordinal entities carry monotonically increasing keys and no watermark.
	Ordinal bool
	// MaxPages bounds a paged walk; 0 means unbounded.
	MaxPages int
	// Parent is the zero row used to address the parent table.
	Parent models.Parent
	Decode func(raw json.RawMessage, syncedAt time.Time) (models.FetchedRecord, error)
}

var (
	Accounts = Entity{
		Name:       "accounts",
		Resource:   xero.ResourceAccounts,
		Pagination: PaginateNone,
		Parent:     &models.Account{},
		Decode:     decodeAccount,
	}
	Contacts = Entity{
		Name:       "contacts",
		Resource:   xero.ResourceContacts,
		Pagination: PaginatePages,
		MaxPages:   200,
		Parent:     &models.Contact{},
		Decode:     decodeContact,
	}
	Invoices = Entity{
		Name:        "invoices",
		Resource:    xero.ResourceInvoices,
		Pagination:  PaginatePages,
		Watermarked: true,
		MaxPages:    2000,
		Parent:      &models.Invoice{},
		Decode:      decodeInvoice,
	}
	Journals = Entity{
		Name:       "journals",
		Resource:   xero.ResourceJournals,
		Pagination: PaginateOffset,
		Ordinal:    true,
		Parent:     &models.Journal{},
		Decode:     decodeJournal,
	}
)

// DefaultEntities is the fixed sync order.
func DefaultEntities() []Entity {
	return []Entity{Accounts, Contacts, Invoices, Journals}
}

// decodePage decodes every raw record, logging and skipping the malformed ones.
func (e Entity) decodePage(raw []json.RawMessage, syncedAt time.Time) ([]models.FetchedRecord, int64) {
	records := make([]models.FetchedRecord, 0, len(raw))
	var maxKey int64
	for _, r := range raw {
		record, err := e.Decode(r, syncedAt)
		if err != nil {
			log.Printf("Warning: skipping %v", &RecordError{Entity: e.Name, ID: record.ID, Err: err})
			continue
		}
		if record.Key > maxKey {
			maxKey = record.Key
		}
		records = append(records, record)
	}
	return records, maxKey
}

func decodeAccount(raw json.RawMessage, syncedAt time.Time) (models.FetchedRecord, error) {
	var a xero.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return models.FetchedRecord{}, err
	}
	if a.AccountID == "" {
		return models.FetchedRecord{}, errMissingID
	}
	updated, err := xero.ParseDate(a.UpdatedDateUTC)
	if err != nil {
		return models.FetchedRecord{ID: a.AccountID}, err
	}

	return models.FetchedRecord{
		ID: a.AccountID,
		Parent: &models.Account{
			AccountID:      a.AccountID,
			Code:           optional(a.Code),
			Name:           a.Name,
			AccountType:    a.Type,
			Description:    optional(a.Description),
			EnablePayments: a.EnablePayments,
			Status:         a.Status,
			UpdatedDateUTC: updated,
			SyncedAt:       syncedAt,
		},
	}, nil
}

func decodeContact(raw json.RawMessage, syncedAt time.Time) (models.FetchedRecord, error) {
	var c xero.Contact
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.FetchedRecord{}, err
	}
	if c.ContactID == "" {
		return models.FetchedRecord{}, errMissingID
	}
	updated, err := xero.ParseDate(c.UpdatedDateUTC)
	if err != nil {
		return models.FetchedRecord{ID: c.ContactID}, err
	}

	return models.FetchedRecord{
		ID: c.ContactID,
		Parent: &models.Contact{
			ContactID:      c.ContactID,
			Name:           c.Name,
			EmailAddress:   optional(c.EmailAddress),
			Phones:         jsonOrEmptyArray(c.Phones),
			Addresses:      jsonOrEmptyArray(c.Addresses),
			TaxNumber:      optional(c.TaxNumber),
			ContactStatus:  c.ContactStatus,
			UpdatedDateUTC: updated,
			SyncedAt:       syncedAt,
		},
	}, nil
}

func decodeInvoice(raw json.RawMessage, syncedAt time.Time) (models.FetchedRecord, error) {
	var inv xero.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return models.FetchedRecord{}, err
	}
	if inv.InvoiceID == "" {
		return models.FetchedRecord{}, errMissingID
	}

	dates, err := parseDates(inv.Date, inv.DueDate, inv.ExpectedPaymentDate, inv.UpdatedDateUTC)
	if err != nil {
		return models.FetchedRecord{ID: inv.InvoiceID}, err
	}

	items := make([]models.InvoiceItem, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		if li.LineItemID == "" {
			return models.FetchedRecord{ID: inv.InvoiceID}, fmt.Errorf("line item: %w", errMissingID)
		}
		items = append(items, models.InvoiceItem{
			InvoiceItemID: models.ChildID(inv.InvoiceID, li.LineItemID),
			InvoiceID:     inv.InvoiceID,
			Description:   optional(li.Description),
			Quantity:      li.Quantity,
			UnitAmount:    li.UnitAmount,
			TaxType:       optional(li.TaxType),
			TaxAmount:     li.TaxAmount,
			LineAmount:    li.LineAmount,
			AccountCode:   optional(li.AccountCode),
			AccountID:     optional(li.AccountID),
			SyncedAt:      syncedAt,
		})
	}

	return models.FetchedRecord{
		ID: inv.InvoiceID,
		Parent: &models.Invoice{
			InvoiceID:           inv.InvoiceID,
			InvoiceNumber:       optional(inv.InvoiceNumber),
			ContactID:           optional(inv.Contact.ContactID),
			InvoiceType:         inv.Type,
			Status:              inv.Status,
			LineAmountTypes:     optional(inv.LineAmountTypes),
			InvoiceDate:         dates[0],
			DueDate:             dates[1],
			ExpectedPaymentDate: dates[2],
			Reference:           optional(inv.Reference),
			BrandingThemeID:     optional(inv.BrandingThemeID),
			SubTotal:            inv.SubTotal,
			TotalTax:            inv.TotalTax,
			Total:               inv.Total,
			CurrencyCode:        optional(inv.CurrencyCode),
			UpdatedDateUTC:      dates[3],
			SyncedAt:            syncedAt,
		},
		Children:   &items,
		ChildCount: len(items),
	}, nil
}

func decodeJournal(raw json.RawMessage, syncedAt time.Time) (models.FetchedRecord, error) {
	var j xero.Journal
	if err := json.Unmarshal(raw, &j); err != nil {
		return models.FetchedRecord{}, err
	}
	if j.JournalID == "" {
		return models.FetchedRecord{}, errMissingID
	}
	if j.JournalNumber <= 0 {
		return models.FetchedRecord{ID: j.JournalID}, fmt.Errorf("invalid journal number %d", j.JournalNumber)
	}

	dates, err := parseDates(j.JournalDate, j.CreatedDateUTC)
	if err != nil {
		return models.FetchedRecord{ID: j.JournalID}, err
	}

	lines := make([]models.JournalLine, 0, len(j.JournalLines))
	for _, jl := range j.JournalLines {
		if jl.JournalLineID == "" {
			return models.FetchedRecord{ID: j.JournalID}, fmt.Errorf("journal line: %w", errMissingID)
		}
		line := models.JournalLine{
			JournalLineID: models.ChildID(j.JournalID, jl.JournalLineID),
			JournalID:     j.JournalID,
			AccountID:     optional(jl.AccountID),
			AccountCode:   optional(jl.AccountCode),
			Description:   optional(jl.Description),
			NetAmount:     jl.NetAmount,
			TaxAmount:     jl.TaxAmount,
			SyncedAt:      syncedAt,
		}
		if len(jl.TrackingCategories) > 0 {
			line.TrackingName = optional(jl.TrackingCategories[0].Name)
			line.TrackingOption = optional(jl.TrackingCategories[0].Option)
		}
		lines = append(lines, line)
	}

	return models.FetchedRecord{
		ID:  j.JournalID,
		Key: j.JournalNumber,
		Parent: &models.Journal{
			JournalID:      j.JournalID,
			JournalNumber:  j.JournalNumber,
			Reference:      optional(j.Reference),
			SourceID:       optional(j.SourceID),
			SourceType:     optional(j.SourceType),
			JournalDate:    dates[0],
			CreatedDateUTC: dates[1],
			SyncedAt:       syncedAt,
		},
		Children:   &lines,
		ChildCount: len(lines),
	}, nil
}

func parseDates(values ...string) ([]*time.Time, error) {
	out := make([]*time.Time, len(values))
	for i, v := range values {
		t, err := xero.ParseDate(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonOrEmptyArray(raw json.RawMessage) models.JSON {
	if len(raw) == 0 || string(raw) == "null" {
		return models.JSON("[]")
	}
	return models.JSON(raw)
}
