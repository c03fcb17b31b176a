package canonical

import (
	"regexp"
	"strings"

	"moonwalketl/internal/config"
)

// Store display names.
const (
	StoreMoonwalk = "Moon Walk"
	StoreHielo    = "Hielo"
)

// Payment labels.
const (
	PayCash       = "Cash"
	PayTerminal   = "Terminal"
	PayStripe     = "Stripe"
	PayReceivable = "Receivable"
	PayOther      = "Other"
)

// Item categories, in match priority order.
const (
	CategoryTraditional  = "Traditional Wear"
	CategoryLinens       = "Home Linens"
	CategoryProfessional = "Professional Wear"
	CategoryExtras       = "Extras"
	CategoryOthers       = "Others"
)

// Service types.
const (
	ServiceDryCleaning = "Dry Cleaning"
	ServiceWashPress   = "Wash & Press"
	ServicePressOnly   = "Press Only"
	ServiceOther       = "Other Service"
)

// Route categories.
const (
	RouteInside = "Inside Abu Dhabi"
	RouteOuter  = "Outer Abu Dhabi"
	RouteOther  = "Other"
)

var digitsPattern = regexp.MustCompile(`\d+`)

// Digits concatenates all digit runs in s.
func Digits(s string) string {
	return strings.Join(digitsPattern.FindAllString(s, -1), "")
}

// Store resolves the display name of the store a row belongs to. Resolution
// order: store id, store name substring, then the legacy default (the legacy
// POS only ever served the Moon Walk store). Unresolvable rows get nil and
// are dropped downstream.
func Store(storeID, storeName any, legacy bool) any {
	if s, ok := storeID.(string); ok {
		switch Digits(s) {
		case config.MoonwalkStoreID:
			return StoreMoonwalk
		case config.HieloStoreID:
			return StoreHielo
		}
	}
	if s, ok := storeName.(string); ok {
		upper := strings.ToUpper(s)
		if strings.Contains(upper, "MOON") {
			return StoreMoonwalk
		}
		if strings.Contains(upper, "HIELO") {
			return StoreHielo
		}
	}
	if legacy {
		return StoreMoonwalk
	}
	return nil
}

// Payment maps a raw payment method onto the closed payment set.
func Payment(raw any) string {
	s, _ := raw.(string)
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "CASH"):
		return PayCash
	case strings.Contains(upper, "CARD"), strings.Contains(upper, "TERMINAL"):
		return PayTerminal
	case strings.Contains(upper, "BANK"), strings.Contains(upper, "STRIPE"):
		return PayStripe
	case strings.Contains(upper, "INVOICE"):
		return PayReceivable
	default:
		return PayOther
	}
}

var categoryCleaner = regexp.MustCompile(`[\s\-&']`)

var (
	traditionalPattern  = regexp.MustCompile(`kandura|kandoora|thobe|abaya|sheyla|shayla|hijab|ghutra|jalabeya`)
	linensPattern       = regexp.MustCompile(`duvet|comforter|bedsheet|sheet|pillowcase|pillow|towel|curtain|tablecloth`)
	professionalPattern = regexp.MustCompile(`uniform|suit|blazer|jacket|shirt|blouse|top|polo|pant|trouser`)
	extrasPattern       = regexp.MustCompile(`shoe|carpet|tailor|alteration`)
)

// ItemCategory classifies an item by keyword over the combined item and
// section text. Priority: traditional wear beats linens beats professional
// wear beats extras; anything unmatched is Others.
func ItemCategory(item, section any) string {
	itemS, _ := item.(string)
	sectionS, _ := section.(string)
	combined := categoryCleaner.ReplaceAllString(strings.ToLower(itemS), "") +
		categoryCleaner.ReplaceAllString(strings.ToLower(sectionS), "")
	switch {
	case traditionalPattern.MatchString(combined):
		return CategoryTraditional
	case linensPattern.MatchString(combined):
		return CategoryLinens
	case professionalPattern.MatchString(combined):
		return CategoryProfessional
	case extrasPattern.MatchString(combined):
		return CategoryExtras
	default:
		return CategoryOthers
	}
}

// ServiceType classifies the section name alone; item names are too noisy
// for service detection. Separators are stripped first so "Dry Cleaning"
// and "Dry-Clean" both match.
func ServiceType(section any) string {
	s, _ := section.(string)
	cleaned := categoryCleaner.ReplaceAllString(strings.ToLower(s), "")
	switch {
	case strings.Contains(cleaned, "dryclean"):
		return ServiceDryCleaning
	case strings.Contains(cleaned, "wash"), strings.Contains(cleaned, "laund"):
		return ServiceWashPress
	case strings.Contains(cleaned, "press"), strings.Contains(cleaned, "iron"):
		return ServicePressOnly
	default:
		return ServiceOther
	}
}

// RouteCategory buckets a delivery route number. Routes 1-3 are the city
// routes; higher numbers are outer-area runs; zero or unknown is Other.
func RouteCategory(route float64) string {
	switch {
	case route >= 1 && route <= 3:
		return RouteInside
	case route > 3:
		return RouteOuter
	default:
		return RouteOther
	}
}
