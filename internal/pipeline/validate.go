package pipeline

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
)

// ValidateBundle checks the required fields of every record in b. Field names in
// the error are prefixed with their collection and index, e.g. "invoices[0].totalTax".
func ValidateBundle(b entity.EntityBundle) error {
	v := common.NewValidator()
	for i, inv := range b.Invoices {
		p := fmt.Sprintf("invoices[%d].", i)
		v.Field(p+"totalQuantity", inv.TotalQuantity, common.NonNegative).
			Field(p+"totalTax", inv.TotalTax, common.Required).
			Field(p+"totalAmount", inv.TotalAmount, common.Required).
			Field(p+"date", inv.Date, common.ValidDate)
	}
	for i, prod := range b.Products {
		p := fmt.Sprintf("products[%d].", i)
		v.Field(p+"productName", prod.ProductName, common.Required).
			Field(p+"priceWithTax", prod.PriceWithTax, common.Required)
	}
	for i, cust := range b.Customers {
		v.Field(fmt.Sprintf("customers[%d].totalAmount", i), cust.TotalAmount, common.Required)
	}
	return v.Error()
}
