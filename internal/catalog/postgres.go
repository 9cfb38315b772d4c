package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/raphaelfeliz/chat-nov9/internal/schema"
)

// LoadFromPostgres reads the catalog snapshot from the products table. Rows
// with an empty motorization column produce products without that tag, the
// same shape the embedded catalog uses.
func LoadFromPostgres(ctx context.Context, db *sql.DB) ([]Product, error) {
	const q = `
		SELECT sku, slug, image, category, system, blind,
		       COALESCE(blind_motorization, ''), material, panel_count
		FROM products
		ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var sku, slug, image, category, system, blind, motorization, material, panels string
		if err := rows.Scan(&sku, &slug, &image, &category, &system, &blind, &motorization, &material, &panels); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}

		facets := map[schema.Key]string{
			schema.KeyCategory:   category,
			schema.KeySystem:     system,
			schema.KeyBlind:      blind,
			schema.KeyMaterial:   material,
			schema.KeyPanelCount: panels,
		}
		if motorization != "" {
			facets[schema.KeyBlindMotorization] = motorization
		}

		out = append(out, Product{SKU: sku, Slug: slug, Image: image, Facets: facets})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("products table is empty")
	}
	return out, nil
}
