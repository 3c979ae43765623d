package render

import "strings"

// FallbackGlyph is drawn for icons that cannot be rendered
const FallbackGlyph = '•'

// Font Awesome 6 Free code points for commonly used icon names
var iconGlyphs = map[string]rune{
	// social
	"github":      '\uf09b',
	"twitter":     '\uf099',
	"x-twitter":   '\ue61b',
	"linkedin":    '\uf08c',
	"linkedin-in": '\uf0e1',
	"facebook":    '\uf09a',
	"facebook-f":  '\uf39e',
	"instagram":   '\uf16d',
	"youtube":     '\uf167',
	"discord":     '\uf392',
	"twitch":      '\uf1e8',
	"reddit":      '\uf1a1',
	"telegram":    '\uf2c6',
	"whatsapp":    '\uf232',
	"tiktok":      '\ue07b',
	"snapchat":    '\uf2ab',
	"pinterest":   '\uf0d2',

	// professional
	"envelope":       '\uf0e0',
	"globe":          '\uf0ac',
	"link":           '\uf0c1',
	"briefcase":      '\uf0b1',
	"graduation-cap": '\uf19d',
	"building":       '\uf1ad',
	"phone":          '\uf095',
	"mobile":         '\uf3cd',

	// ui
	"user":     '\uf007',
	"users":    '\uf0c0',
	"heart":    '\uf004',
	"star":     '\uf005',
	"bookmark": '\uf02e',
	"comment":  '\uf075',
	"share":    '\uf064',
	"trophy":   '\uf091',
	"award":    '\uf559',
	"medal":    '\uf5a2',
	"crown":    '\uf521',

	// arrows
	"arrow-right":   '\uf061',
	"arrow-left":    '\uf060',
	"arrow-up":      '\uf062',
	"arrow-down":    '\uf063',
	"chevron-right": '\uf054',
	"chevron-left":  '\uf053',
	"chevron-up":    '\uf077',
	"chevron-down":  '\uf078',

	// actions
	"download": '\uf019',
	"upload":   '\uf093',
	"check":    '\uf00c',
	"times":    '\uf00d',
	"plus":     '\uf067',
	"minus":    '\uf068',
	"search":   '\uf002',
	"edit":     '\uf044',
	"trash":    '\uf1f8',
	"save":     '\uf0c7',

	"home":          '\uf015',
	"cog":           '\uf013',
	"bell":          '\uf0f3',
	"calendar":      '\uf133',
	"clock":         '\uf017',
	"location-dot":  '\uf3c5',
	"map-marker":    '\uf041',
	"camera":        '\uf030',
	"image":         '\uf03e',
	"video":         '\uf03d',
	"music":         '\uf001',
	"file":          '\uf15b',
	"folder":        '\uf07b',
	"shopping-cart": '\uf07a',
	"gift":          '\uf06b',
	"code":          '\uf121',
	"terminal":      '\uf120',
	"fire":          '\uf06d',
	"bolt":          '\uf0e7',
	"rocket":        '\uf135',
	"palette":       '\uf53f',
	"paint-brush":   '\uf1fc',
	"hammer":        '\uf6e3',
	"wrench":        '\uf0ad',
	"sun":           '\uf185',
	"moon":          '\uf186',
}

// style classes carry no glyph
var iconStyleClasses = map[string]bool{
	"fa": true, "fas": true, "far": true, "fab": true,
	"fa-solid": true, "fa-regular": true, "fa-brands": true,
}

// IsIconFamily reports whether a CSS font family names Font Awesome
func IsIconFamily(family string) bool {
	return strings.Contains(strings.ToLower(family), "font awesome") ||
		strings.Contains(strings.ToLower(family), "fontawesome")
}

// IconRunes converts space separated icon classes ("fa-github fa-x") to
// code points. Unknown names map to FallbackGlyph.
func IconRunes(classes string) []rune {
	var out []rune
	for _, cls := range strings.Fields(classes) {
		if iconStyleClasses[cls] {
			continue
		}
		if r, ok := iconGlyphs[strings.TrimPrefix(cls, "fa-")]; ok {
			out = append(out, r)
		} else {
			out = append(out, FallbackGlyph)
		}
	}
	return out
}

// iconText builds the string drawn for icon classes: known glyphs the icon
// font can draw, FallbackGlyph otherwise, separated by spaces.
func iconText(classes string, has func(rune) bool) string {
	runes := IconRunes(classes)
	parts := make([]string, 0, len(runes))
	for _, r := range runes {
		if r != FallbackGlyph && !has(r) {
			r = FallbackGlyph
		}
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " ")
}
