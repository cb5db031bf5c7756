package insight

// RoleKey is a business-meaning tag the role mapper tries to bind to a column
type RoleKey string

const (
	RoleRevenue        RoleKey = "REVENUE"
	RoleQuantity       RoleKey = "QUANTITY"
	RoleCostAmount     RoleKey = "COST_AMOUNT"
	RoleDiscountAmount RoleKey = "DISCOUNT_AMOUNT"
	RoleDate           RoleKey = "DATE"
	RoleProduct        RoleKey = "PRODUCT"
	RoleCategory       RoleKey = "CATEGORY"
	RolePaymentMethod  RoleKey = "PAYMENT_METHOD"
	RoleCustomer       RoleKey = "CUSTOMER"
	RoleTransactionID  RoleKey = "TRANSACTION_ID"

	// Auxiliary dimension roles. They are resolved on demand by the
	// dimension selector and never appear in a RoleMap.
	RoleChannel  RoleKey = "CHANNEL"
	RoleLocation RoleKey = "LOCATION"
)

// CatalogRoles is the fixed role catalog, in mapping order
var CatalogRoles = []RoleKey{
	RoleRevenue,
	RoleQuantity,
	RoleCostAmount,
	RoleDiscountAmount,
	RoleDate,
	RoleProduct,
	RoleCategory,
	RolePaymentMethod,
	RoleCustomer,
	RoleTransactionID,
}

// NumericRoles are scored against numeric columns only
var NumericRoles = []RoleKey{RoleRevenue, RoleQuantity, RoleCostAmount, RoleDiscountAmount}

// CategoricalRoles are scored against categorical columns first
var CategoricalRoles = []RoleKey{RoleProduct, RoleCategory, RolePaymentMethod, RoleCustomer, RoleTransactionID}

// RolePick binds one role to at most one column. An empty Column means the
// role is unavailable for this dataset.
type RolePick struct {
	Role   RoleKey `json:"role"`
	Column string  `json:"col,omitempty"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Has reports whether the pick names a column
func (p RolePick) Has() bool {
	return p.Column != ""
}

// EmptyPick returns the "role unavailable" pick
func EmptyPick(role RoleKey, reason string) RolePick {
	return RolePick{Role: role, Reason: reason}
}

// RoleMap holds exactly one pick per catalog role
type RoleMap map[RoleKey]RolePick

// Column is the single accessor every consumer uses to resolve a role
func (m RoleMap) Column(role RoleKey) (string, bool) {
	if m == nil {
		return "", false
	}
	p, ok := m[role]
	if !ok || !p.Has() {
		return "", false
	}
	return p.Column, true
}

// Pick returns the stored pick, or an empty one for unknown roles
func (m RoleMap) Pick(role RoleKey) RolePick {
	if p, ok := m[role]; ok {
		return p
	}
	return EmptyPick(role, "role not mapped")
}
