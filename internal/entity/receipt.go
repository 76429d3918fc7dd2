package entity

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceRecord is one invoice line extracted from a document.
type InvoiceRecord struct {
	SerialNumber  string   `json:"serialNumber"`
	CustomerName  string   `json:"customerName"`
	ProductNames  []string `json:"productNames"`
	TotalQuantity int      `json:"totalQuantity"`
	TotalTax      *float64 `json:"totalTax"`
	TotalAmount   *float64 `json:"totalAmount"`
	Date          Date     `json:"date"`
}

// ProductRecord is one product line extracted from a document.
type ProductRecord struct {
	ProductName  string   `json:"productName"`
	Quantity     int      `json:"quantity"`
	UnitPrice    float64  `json:"unitPrice"`
	Tax          float64  `json:"tax"`
	PriceWithTax *float64 `json:"priceWithTax"`
	Discount     float64  `json:"discount"`
}

// CustomerRecord is the buyer/consignee block of a document.
type CustomerRecord struct {
	CustomerName string   `json:"customerName"`
	CompanyName  string   `json:"companyName"`
	PhoneNumber  string   `json:"phoneNumber"`
	TotalAmount  *float64 `json:"totalAmount"`
	Email        string   `json:"email,omitempty"`
	Address      string   `json:"address,omitempty"`
}

// EntityBundle is the unit of persistence: one bundle becomes one receipt.
type EntityBundle struct {
	Invoices  []InvoiceRecord  `json:"invoices"`
	Products  []ProductRecord  `json:"products"`
	Customers []CustomerRecord `json:"customers"`
}

// WithDefaults returns a copy whose absent collections are empty slices.
func (b EntityBundle) WithDefaults() EntityBundle {
	if b.Invoices == nil {
		b.Invoices = []InvoiceRecord{}
	}
	if b.Products == nil {
		b.Products = []ProductRecord{}
	}
	if b.Customers == nil {
		b.Customers = []CustomerRecord{}
	}
	for i := range b.Invoices {
		if b.Invoices[i].ProductNames == nil {
			b.Invoices[i].ProductNames = []string{}
		}
	}
	return b
}

// ExtractionEnvelope is the top-level document returned by the extraction service.
// Total is informational; callers fan out over Data.
type ExtractionEnvelope struct {
	Total int            `json:"total"`
	Data  []EntityBundle `json:"data"`
}

// PersistedReceipt is a committed bundle.
type PersistedReceipt struct {
	ID uuid.UUID `json:"id"`
	EntityBundle
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Float returns a pointer to v, for building records in code.
func Float(v float64) *float64 {
	return &v
}
