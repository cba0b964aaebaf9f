package schema

// Default returns the registry for the shop database.
func Default() *Registry {
	return New(shopTables, shopBuckets)
}

var shopTables = []TableSpec{
	{Name: "global_settings", Class: Configuration, Key: []string{"key"}},
	{Name: "colors", Class: Configuration},
	{Name: "sizes", Class: Configuration},
	{Name: "categories", Class: Configuration},
	{Name: "coupons", Class: Configuration},
	{Name: "bank_accounts", Class: Configuration},
	{Name: "shipping_rates", Class: Configuration},
	{Name: "pricing_rules", Class: Configuration},
	{Name: "profiles", Class: Transactional},
	{Name: "user_roles", Class: Transactional, Key: []string{"user_id", "role"}},
	{Name: "products", Class: Transactional},
	{Name: "product_images", Class: Transactional},
	{Name: "cart_items", Class: Transactional},
	{Name: "orders", Class: Transactional},
	{Name: "order_items", Class: Transactional},
	{Name: "payments", Class: Transactional},
	{Name: "invoices", Class: Transactional},
	{Name: "notifications", Class: Transactional},
}

var shopBuckets = []string{
	"product-images",
	"payment-proofs",
	"invoices",
}
