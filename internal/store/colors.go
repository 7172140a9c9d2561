package store

// palette is the fixed display-color cycle for annotations whose category has
// no configured color. Cycled by insertion order per store instance.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#fffac8", "#800000",
	"#aaffc3", "#808000", "#ffd8b1", "#000075", "#808080",
}

// nextColor assigns a display color for a new annotation: the category color
// when one is configured, otherwise the next palette entry. The palette
// cursor only advances when the palette is actually used, so category-colored
// annotations do not burn palette slots.
func (s *Store) nextColor(categoryID int) string {
	if c, ok := s.categoryColors[categoryID]; ok {
		return c
	}
	c := palette[s.nextColorIndex%len(palette)]
	s.nextColorIndex++
	return c
}

// SetCategoryColor registers a fixed display color for a category.
func (s *Store) SetCategoryColor(categoryID int, color string) {
	s.categoryColors[categoryID] = color
}
