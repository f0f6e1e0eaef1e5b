package app

import (
	"html/template"
	"strings"
)

const maxRating = 5

// RenderStars draws a 1..5 rating as filled and empty star spans.
func RenderStars(rating int) template.HTML {
	var b strings.Builder
	for i := 1; i <= maxRating; i++ {
		if i <= rating {
			b.WriteString(`<span class="star filled">★</span>`)
		} else {
			b.WriteString(`<span class="star">☆</span>`)
		}
	}
	return template.HTML(b.String())
}

// ValidRating reports whether r is an accepted review rating.
func ValidRating(r int) bool {
	return r >= 1 && r <= maxRating
}
