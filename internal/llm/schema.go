package llm

// BuildEnvelopeJSONSchema returns the JSON-Schema (draft 2020-12 subset) for the
// extraction envelope. It constrains shape only: required business fields are
// checked per bundle at commit time, so a missing total here is not a schema error.
func BuildEnvelopeJSONSchema() map[string]any {
	invoice := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"serialNumber":  stringProp(),
			"customerName":  stringProp(),
			"productNames":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"totalQuantity": numberProp(),
			"totalTax":      numberProp(),
			"totalAmount":   numberProp(),
			"date":          stringProp(),
		},
	}
	product := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"productName":  stringProp(),
			"quantity":     numberProp(),
			"unitPrice":    numberProp(),
			"tax":          numberProp(),
			"priceWithTax": numberProp(),
			"discount":     numberProp(),
		},
	}
	customer := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customerName": stringProp(),
			"companyName":  stringProp(),
			"phoneNumber":  stringProp(),
			"totalAmount":  numberProp(),
			"email":        stringProp(),
			"address":      stringProp(),
		},
	}

	bundle := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoices":  map[string]any{"type": "array", "items": invoice},
			"products":  map[string]any{"type": "array", "items": product},
			"customers": map[string]any{"type": "array", "items": customer},
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"total": map[string]any{"type": "integer", "minimum": 0},
			"data":  map[string]any{"type": "array", "items": bundle},
		},
		"required": []string{"data"},
	}
}

func numberProp() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}

func stringProp() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}
