package handlers

import (
	"slices"
	"strings"
	"unicode"
)

var garmentKeywords = []string{
	"garment", "clothes", "clothing", "outfit", "dress", "shirt", "t-shirt",
	"jacket", "coat", "hoodie", "sweater", "skirt", "pants", "jeans", "suit",
	"kiyim", "ko'ylak", "ko‘ylak", "libos", "kurtka", "shim",
}

var personKeywords = []string{
	"myself", "selfie", "person", "o'zim", "o‘zim",
}

// English plurals and Uzbek plural/accusative endings.
var keywordSuffixes = []string{"", "s", "es", "lar", "ni", "larni"}

func isGarmentCaption(caption string) bool {
	c := strings.ToLower(strings.TrimSpace(caption))
	if c == "" {
		return false
	}

	words := strings.FieldsFunc(c, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",.!?;:()\"", r)
	})
	for _, w := range words {
		if slices.Contains(personKeywords, w) {
			return false
		}
	}

	for _, w := range words {
		for _, kw := range garmentKeywords {
			if !strings.HasPrefix(w, kw) {
				continue
			}
			if slices.Contains(keywordSuffixes, strings.TrimPrefix(w, kw)) {
				return true
			}
		}
	}
	return false
}

func isImageMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
