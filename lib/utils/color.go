package utils

import "unicode/utf16"

var ColorPalette = []string{
	"#3B82F6",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#8B5CF6",
	"#EC4899",
	"#14B8A6",
	"#F97316",
}

// ColorForUser maps a user id onto the palette. The hash folds the UTF-16
// code units into a signed 32 bit integer so browser clients derive the
// same color for the same id.
func ColorForUser(userId string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(userId)) {
		hash = int32(unit) + ((hash << 5) - hash)
	}
	index := int64(hash)
	if index < 0 {
		index = -index
	}
	return ColorPalette[index%int64(len(ColorPalette))]
}
