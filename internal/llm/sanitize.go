package llm

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindInteger
	kindStringList
)

type collectionSpec struct {
	fields  map[string]fieldKind
	aliases map[string]string
}

var collections = map[string]collectionSpec{
	"invoices": {
		fields: map[string]fieldKind{
			"serialNumber":  kindString,
			"customerName":  kindString,
			"productNames":  kindStringList,
			"totalQuantity": kindInteger,
			"totalTax":      kindNumber,
			"totalAmount":   kindNumber,
			"date":          kindString,
		},
		aliases: map[string]string{
			"serialnumber":  "serialNumber",
			"customername":  "customerName",
			"productnames":  "productNames",
			"totalquantity": "totalQuantity",
			"totaltax":      "totalTax",
			"totalamount":   "totalAmount",
		},
	},
	"products": {
		fields: map[string]fieldKind{
			"productName":  kindString,
			"quantity":     kindInteger,
			"unitPrice":    kindNumber,
			"tax":          kindNumber,
			"priceWithTax": kindNumber,
			"discount":     kindNumber,
		},
		aliases: map[string]string{
			"productname":  "productName",
			"unitprice":    "unitPrice",
			"pricewithtax": "priceWithTax",
			"Discount":     "discount",
		},
	},
	"customers": {
		fields: map[string]fieldKind{
			"customerName": kindString,
			"companyName":  kindString,
			"phoneNumber":  kindString,
			"totalAmount":  kindNumber,
			"email":        kindString,
			"address":      kindString,
		},
		aliases: map[string]string{
			"customername": "customerName",
			"companyname":  "companyName",
			"phonenumber":  "phoneNumber",
			"totalamount":  "totalAmount",
		},
	},
}

// NormalizeEnvelope rewrites a decoded envelope in place so it can be validated
// and decoded into typed records:
//   - renames known lowercase aliases to the camelCase wire names
//   - drops null collections and null productNames
//   - coerces numeric strings ("1,200.50", "$25") to numbers
//   - drops unknown keys
//
// It returns a description of every change it made. Values that cannot be
// coerced are left in place so schema validation reports them.
func NormalizeEnvelope(doc map[string]any, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	changes := make([]string, 0, 8)

	if v, ok := doc["total"]; ok {
		n, ok := coerceInteger(v)
		switch {
		case ok && n == nil:
			delete(doc, "total")
			changes = append(changes, "total(null)")
		case ok:
			doc["total"] = n
		}
	}

	data, _ := doc["data"].([]any)
	for i, item := range data {
		bundle, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for key := range bundle {
			if _, known := collections[key]; known {
				continue
			}
			if canon, ok := collectionAlias(key); ok {
				if _, exists := bundle[canon]; !exists {
					bundle[canon] = bundle[key]
				}
				delete(bundle, key)
				changes = append(changes, fmt.Sprintf("data[%d].%s->%s", i, key, canon))
			}
		}
		for name, spec := range collections {
			raw, present := bundle[name]
			if !present {
				continue
			}
			if raw == nil {
				delete(bundle, name)
				changes = append(changes, fmt.Sprintf("data[%d].%s(null)", i, name))
				continue
			}
			records, ok := raw.([]any)
			if !ok {
				continue
			}
			for j, r := range records {
				rec, ok := r.(map[string]any)
				if !ok {
					continue
				}
				prefix := fmt.Sprintf("data[%d].%s[%d].", i, name, j)
				changes = append(changes, normalizeRecord(rec, spec, prefix)...)
			}
		}
	}

	if len(changes) > 0 {
		logger.Warn("llm.parse.normalize_sanitize", "changes", slices.Clip(changes))
	}
	return changes
}

func normalizeRecord(rec map[string]any, spec collectionSpec, prefix string) []string {
	var changes []string
	for from, to := range spec.aliases {
		v, ok := rec[from]
		if !ok {
			continue
		}
		if _, exists := rec[to]; !exists {
			rec[to] = v
		}
		delete(rec, from)
		changes = append(changes, prefix+from+"->"+to)
	}

	for key, v := range rec {
		kind, known := spec.fields[key]
		if !known {
			delete(rec, key)
			changes = append(changes, prefix+key+"(unknown)")
			continue
		}
		switch kind {
		case kindNumber:
			if _, isNum := v.(float64); isNum || v == nil {
				continue
			}
			if n, ok := coerceNumber(v); ok {
				rec[key] = n
				changes = append(changes, prefix+key+"(coerced)")
			}
		case kindInteger:
			if f, isNum := v.(float64); (isNum && f == float64(int64(f))) || v == nil {
				continue
			}
			if n, ok := coerceInteger(v); ok {
				rec[key] = n
				changes = append(changes, prefix+key+"(coerced)")
			}
		case kindString:
			if _, isStr := v.(string); isStr || v == nil {
				continue
			}
			if s, ok := coerceString(v); ok {
				rec[key] = s
				changes = append(changes, prefix+key+"(coerced)")
			}
		case kindStringList:
			switch t := v.(type) {
			case nil:
				delete(rec, key)
				changes = append(changes, prefix+key+"(null)")
			case string:
				rec[key] = splitNames(t)
				changes = append(changes, prefix+key+"(split)")
			case []any:
				for idx, name := range t {
					if _, isStr := name.(string); isStr {
						continue
					}
					if s, ok := coerceString(name); ok && s != nil {
						t[idx] = s
					}
				}
			}
		}
	}
	return changes
}

// collectionAlias maps "Invoices" or "invoice" onto the canonical collection key.
func collectionAlias(key string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	for name := range collections {
		if k == name || k == strings.TrimSuffix(name, "s") {
			return name, true
		}
	}
	return "", false
}

func splitNames(s string) []any {
	parts := strings.Split(s, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
