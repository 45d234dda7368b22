package dictionary

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

// IsKana reports whether every rune of s is hiragana, katakana or the
// prolonged sound mark.
func IsKana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 0x3040 && r <= 0x309F) && !(r >= 0x30A0 && r <= 0x30FF) {
			return false
		}
	}
	return true
}
