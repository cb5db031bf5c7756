package profiling

import (
	"regexp"
	"strings"
	"unicode"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName lowercases a column name and collapses separators to single
// spaces, so "Sales_Amount" and "sales-amount" both become "sales amount".
func NormalizeName(name string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(splitCamel(name)), " "))
}

// NameTokens returns the normalized words of a column name
func NameTokens(name string) []string {
	return strings.Fields(NormalizeName(name))
}

// splitCamel inserts a space at lower-to-upper boundaries ("OrderID" -> "Order ID")
func splitCamel(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var identifierTokens = map[string]bool{
	"id": true, "ids": true, "uuid": true, "guid": true, "code": true,
	"sku": true, "key": true, "pk": true, "ref": true, "hash": true,
}

// entity prefixes that form identifiers when glued to "id" ("orderid")
var identifierEntities = map[string]bool{
	"order": true, "customer": true, "cust": true, "user": true, "product": true,
	"prod": true, "transaction": true, "trans": true, "txn": true, "invoice": true,
	"store": true, "item": true, "client": true, "account": true, "session": true,
	"row": true, "record": true, "employee": true, "vendor": true, "supplier": true,
	"branch": true, "shop": true, "receipt": true, "bill": true,
}

// IsIdentifierName reports whether a column name reads like a key rather
// than a measure. Matching is token based so "paid" or "valid" never count.
func IsIdentifierName(name string) bool {
	for _, tok := range NameTokens(name) {
		if identifierTokens[tok] {
			return true
		}
		if strings.HasSuffix(tok, "id") && identifierEntities[strings.TrimSuffix(tok, "id")] {
			return true
		}
		if tok == "no" || tok == "num" || tok == "number" {
			// "order no", "invoice number"
			for _, other := range NameTokens(name) {
				if identifierEntities[other] {
					return true
				}
			}
		}
	}
	return false
}
