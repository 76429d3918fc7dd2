package llm

import (
	"strings"

	"github.com/joseph-ayodele/invoice-ingest/constants"
)

// ExtractionPrompt is the fixed instruction sent with every uploaded document.
var ExtractionPrompt = buildExtractionPrompt()

func buildExtractionPrompt() string {
	parts := []string{
		"Extract the data from the document and structure it into three sections.",
		"",
		"1. Invoices. For each invoice extract:",
		"   - serialNumber (invoice number or unique identifier for each customerName)",
		"   - customerName",
		"   - productNames (array of product names)",
		"   - totalQuantity (count of all products, integer)",
		"   - totalTax (number)",
		"   - totalAmount (number)",
		"   - date (YYYY-MM-DD)",
		"2. Products. For each product extract:",
		"   - productName",
		"   - quantity (integer)",
		"   - unitPrice (number)",
		"   - tax (number)",
		"   - priceWithTax (number)",
		"   - discount (number, optional)",
		"3. Customers. For each customer extract:",
		"   - customerName (buyer, consignee, party or customer name)",
		"   - companyName (company, party company or customer company name)",
		"   - phoneNumber (buyer, consignee, party or customer phone number)",
		"   - totalAmount (total amount, total bill amount or total invoice amount)",
		"   - email and address when present",
		"",
		"Return ONLY JSON. Numbers must be JSON numbers, not strings.",
		`The top-level object is {"total": <number of elements in data>, "data": [ ... ]}.`,
		`Each element of data has the keys "invoices", "products" and "customers", each an array.`,
		"If the document contains multiple customers, produce one element of data per customer, each with that customer's invoices, products and customer details.",
		`If customerName or other customer details are not available, use "` + constants.DefaultCustomerName + `".`,
		"",
		"Example (one invoice, one customer):",
		exampleSingle,
		"",
		"Example (two customers in one document):",
		exampleMulti,
	}
	return strings.Join(parts, "\n")
}

const exampleSingle = `{
  "total": 1,
  "data": [
    {
      "invoices": [
        {"serialNumber": "INV-87654", "customerName": "Alex Johnson", "productNames": ["Product 1", "Product 2"], "totalQuantity": 3, "totalTax": 10.00, "totalAmount": 210.00, "date": "2024-11-15"}
      ],
      "products": [
        {"productName": "Product 1", "quantity": 1, "unitPrice": 100.00, "tax": 5.00, "priceWithTax": 105.00},
        {"productName": "Product 2", "quantity": 2, "unitPrice": 50.00, "tax": 5.00, "priceWithTax": 105.00}
      ],
      "customers": [
        {"customerName": "Alex Johnson", "companyName": "AutoWorks", "phoneNumber": "555-4321", "totalAmount": 210.00}
      ]
    }
  ]
}`

const exampleMulti = `{
  "total": 2,
  "data": [
    {
      "invoices": [{"serialNumber": "INV-87654", "customerName": "Alex Johnson", "productNames": ["Product 1"], "totalQuantity": 1, "totalTax": 5.00, "totalAmount": 105.00, "date": "2024-11-15"}],
      "products": [{"productName": "Product 1", "quantity": 1, "unitPrice": 100.00, "tax": 5.00, "priceWithTax": 105.00}],
      "customers": [{"customerName": "Alex Johnson", "companyName": "AutoWorks", "phoneNumber": "555-4321", "totalAmount": 105.00}]
    },
    {
      "invoices": [{"serialNumber": "INV-87655", "customerName": "Maria Lopez", "productNames": ["Product 2"], "totalQuantity": 2, "totalTax": 5.00, "totalAmount": 105.00, "date": "2024-11-15"}],
      "products": [{"productName": "Product 2", "quantity": 2, "unitPrice": 50.00, "tax": 5.00, "priceWithTax": 105.00}],
      "customers": [{"customerName": "Maria Lopez", "companyName": "Lopez Traders", "phoneNumber": "555-9876", "totalAmount": 105.00}]
    }
  ]
}`
