package catalog

import "github.com/raphaelfeliz/chat-nov9/internal/schema"

// DefaultProducts is the embedded catalog used when no Postgres source is
// configured. One record per sellable configuration; catalog order decides
// which product a multi-match displays first.
func DefaultProducts() []Product {
	return []Product{
		// Sliding windows, glass
		window("PW-2001", "sliding-window-2-glass", "sliding-window", "glass", "2", "no", ""),
		window("PW-2002", "sliding-window-3-glass", "sliding-window", "glass", "3", "no", ""),
		window("PW-2003", "sliding-window-4-glass", "sliding-window", "glass", "4", "no", ""),
		window("PW-2004", "sliding-window-6-glass", "sliding-window", "glass", "6", "no", ""),
		window("PW-2101", "sliding-window-2-glass-blind-motorized", "sliding-window", "glass", "2", "yes", "motorized"),
		window("PW-2102", "sliding-window-4-glass-blind-motorized", "sliding-window", "glass", "4", "yes", "motorized"),
		window("PW-2103", "sliding-window-2-glass-blind-manual", "sliding-window", "glass", "2", "yes", "manual"),
		window("PW-2104", "sliding-window-3-glass-blind-manual", "sliding-window", "glass", "3", "yes", "manual"),

		// Sliding windows, glass + shutter
		window("PW-2201", "sliding-window-2-glass-shutter", "sliding-window", "glass-shutter", "2", "no", ""),
		window("PW-2202", "sliding-window-4-glass-shutter", "sliding-window", "glass-shutter", "4", "no", ""),
		window("PW-2203", "sliding-window-4-glass-shutter-blind-motorized", "sliding-window", "glass-shutter", "4", "yes", "motorized"),

		// Casement windows
		window("PW-3001", "casement-window-1-glass", "casement", "glass", "1", "no", ""),
		window("PW-3002", "casement-window-2-glass", "casement", "glass", "2", "no", ""),
		window("PW-3003", "casement-window-2-shutter", "casement", "shutter", "2", "no", ""),
		window("PW-3004", "casement-window-1-glass-panel", "casement", "glass-panel", "1", "no", ""),

		// Awning windows
		window("PW-4001", "awning-window-1-glass", "awning", "glass", "1", "no", ""),

		// Sliding doors
		door("PD-5001", "sliding-door-2-glass", "sliding-door", "glass", "2", "no", ""),
		door("PD-5002", "sliding-door-3-glass", "sliding-door", "glass", "3", "no", ""),
		door("PD-5003", "sliding-door-4-glass", "sliding-door", "glass", "4", "no", ""),
		door("PD-5004", "sliding-door-6-glass", "sliding-door", "glass", "6", "no", ""),
		door("PD-5101", "sliding-door-4-glass-blind-motorized", "sliding-door", "glass", "4", "yes", "motorized"),
		door("PD-5102", "sliding-door-2-glass-blind-manual", "sliding-door", "glass", "2", "yes", "manual"),

		// Casement doors
		door("PD-6001", "casement-door-1-panel", "casement", "panel", "1", "no", ""),
		door("PD-6002", "casement-door-1-glass-panel", "casement", "glass-panel", "1", "no", ""),
		door("PD-6003", "casement-door-2-glass", "casement", "glass", "2", "no", ""),
	}
}

func window(sku, slug, system, material, panels, blind, motorization string) Product {
	return build(sku, slug, "window", system, material, panels, blind, motorization)
}

func door(sku, slug, system, material, panels, blind, motorization string) Product {
	return build(sku, slug, "door", system, material, panels, blind, motorization)
}

func build(sku, slug, category, system, material, panels, blind, motorization string) Product {
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
	return Product{
		SKU:    sku,
		Slug:   slug,
		Image:  "/assets/products/" + slug + ".webp",
		Facets: facets,
	}
}
