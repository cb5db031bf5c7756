package roles

import (
	"regexp"

	"kpiscout/domain/insight"
)

// keyword patterns run against profiling.NormalizeName output, so words are
// lowercase and separated by single spaces
var roleKeywords = map[insight.RoleKey][]*regexp.Regexp{
	insight.RoleRevenue: compile(
		`\brevenue\b`,
		`\bsales?\b`,
		`\b(amount|amt)\b`,
		`\btotal\b`,
		`\b(turnover|income|gross)\b`,
	),
	insight.RoleQuantity: compile(
		`\b(qty|quantity|quantities)\b`,
		`\b(units?|items?)\b`,
		`\b(count|volume)\b`,
		`\b(pieces?|pcs)\b`,
	),
	insight.RoleCostAmount: compile(
		`\b(cost|costs|cogs)\b`,
		`\bexpenses?\b`,
		`\b(spend|purchase|wholesale)\b`,
	),
	insight.RoleDiscountAmount: compile(
		`\bdiscounts?\b`,
		`\b(promo|promotion|coupon)\b`,
		`\b(rebate|markdown|off)\b`,
	),
	insight.RoleDate: compile(
		`\bdate\b`,
		`\b(time|timestamp|datetime)\b`,
		`\b(day|month|year|week|period)\b`,
		`\b(created|ordered|at)\b`,
	),
	insight.RoleProduct: compile(
		`\bproducts?\b`,
		`\b(item|items|sku)\b`,
		`\b(menu|dish|drink|beverage|coffee)\b`,
	),
	insight.RoleCategory: compile(
		`\b(category|categories|cat)\b`,
		`\b(type|kind|class)\b`,
		`\b(group|segment|department|family)\b`,
	),
	insight.RolePaymentMethod: compile(
		`\b(payment|pay|paid)\b`,
		`\b(method|mode)\b`,
		`\b(card|cash|tender|wallet)\b`,
	),
	insight.RoleCustomer: compile(
		`\b(customers?|client|clients)\b`,
		`\b(buyer|member|user|account)\b`,
		`\b(guest|patron|shopper)\b`,
	),
	insight.RoleTransactionID: compile(
		`\b(transaction|txn|order|invoice|receipt|bill)\b`,
		`\b(id|no|number|num|code|ref)\b`,
	),
	insight.RoleChannel: compile(
		`\bchannel\b`,
		`\b(source|platform|medium)\b`,
		`\b(online|web|app|outlet)\b`,
	),
	insight.RoleLocation: compile(
		`\blocation\b`,
		`\b(city|region|country|state|province|district|area)\b`,
		`\b(branch|store|shop|site)\b`,
	),
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// anchoredRoles score nothing unless their first pattern matches, so a bare
// "customer_id" is never read as a transaction id
var anchoredRoles = map[insight.RoleKey]bool{
	insight.RoleTransactionID: true,
}

// keywordHits counts how many of the role's patterns match the normalized name
func keywordHits(role insight.RoleKey, normalized string) int {
	patterns := roleKeywords[role]
	if anchoredRoles[role] && (len(patterns) == 0 || !patterns[0].MatchString(normalized)) {
		return 0
	}
	hits := 0
	for _, re := range patterns {
		if re.MatchString(normalized) {
			hits++
		}
	}
	return hits
}
