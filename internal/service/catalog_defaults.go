package service

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func colorItem(slug, label, hex string, price int64, rarity string, order int) ItemInput {
	return ItemInput{
		Slug: slug, Label: label, Type: "color", Category: strp("cursor"),
		Rarity: strp(rarity), SortOrder: intp(order), Price: price,
		Metadata: map[string]any{"color": hex},
	}
}

func cosmetic(slug, label, typ string, price int64, rarity string, order int) ItemInput {
	return ItemInput{
		Slug: slug, Label: label, Type: typ, Category: strp(typ),
		Rarity: strp(rarity), SortOrder: intp(order), Price: price,
	}
}

// DefaultCatalog 首次启动写入的默认商店目录
func DefaultCatalog() []ItemInput {
	return []ItemInput{
		colorItem("color-red", "Red Cursor", "#ef4444", 25, "common", 10),
		colorItem("color-blue", "Blue Cursor", "#3b82f6", 25, "common", 11),
		colorItem("color-green", "Green Cursor", "#22c55e", 25, "common", 12),
		colorItem("color-purple", "Purple Cursor", "#a855f7", 75, "uncommon", 13),
		colorItem("color-gold", "Gold Cursor", "#eab308", 250, "rare", 14),
		cosmetic("party-hat", "Party Hat", "hat", 50, "common", 20),
		cosmetic("top-hat", "Top Hat", "hat", 150, "uncommon", 21),
		cosmetic("wizard-hat", "Wizard Hat", "hat", 400, "rare", 22),
		cosmetic("crown", "Crown", "hat", 1000, "legendary", 23),
		cosmetic("sunglasses", "Sunglasses", "accessory", 100, "common", 30),
		cosmetic("monocle", "Monocle", "accessory", 300, "rare", 31),
		cosmetic("sparkles", "Sparkles", "effect", 200, "uncommon", 40),
		cosmetic("fire-trail", "Fire Trail", "effect", 750, "epic", 41),
		{
			Slug: "name-change", Label: "Custom Name", Type: "name",
			Description: strp("Pick your own display name"), Rarity: strp("common"),
			SortOrder: intp(1), Price: 10,
		},
	}
}
