package domain

// Account represents the upstream account as reported by GET /api/user.
type Account struct {
	// Credit is the remaining balance on the provider account.
	Credit float64 `json:"credit"`
	// Currency is the currency code of the balance, if the provider reports one.
	Currency string `json:"currency,omitempty"`
}

// Product represents one entry of the upstream catalog.
type Product struct {
	// ID is the provider-assigned product identifier.
	ID int64 `json:"id"`
	// Name is the display name of the product.
	Name string `json:"name"`
	// Price is the unit price charged against the account credit.
	Price float64 `json:"price"`
	// Stock is the remaining deliverable units; 0 when the provider omits it.
	Stock int `json:"stock"`
}

// Order represents an order as reported by the upstream provider.
// Fields absent from a response decode to their zero values; callers fall
// back to previously stored state where the zero value is not meaningful.
type Order struct {
	// OrderID is the provider-assigned order identifier. 0 when the
	// response omits it (e.g., GET /api/orders/{id} echoes no id).
	OrderID int64 `json:"order_id"`
	// Status is the raw lifecycle state string reported by the provider.
	Status string `json:"status"`
	// Content is the delivered payload (license key, digital content),
	// present once the provider marks the order completed.
	Content string `json:"content,omitempty"`
}
