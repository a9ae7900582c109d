package research

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/retail"
)

// Intent is the coarse classification of a user message.
type Intent string

const (
	IntentQuickQuestion   Intent = "quick_question"
	IntentProductResearch Intent = "product_research"
	IntentGeneral         Intent = "general"
)

// Classification is the result of Classify.
type Classification struct {
	Intent   Intent
	Category string
}

type category struct {
	name     string
	keywords []string
}

// Ordered so multi-word and more specific terms win ("battery tender" before
// "battery").
var categories = []category{
	{"battery charger", []string{"battery tender", "trickle charger", "battery charger", "battery maintainer"}},
	{"battery", []string{"battery", "batteries"}},
	{"tires", []string{"tire", "tires", "tyre", "tyres"}},
	{"brake pads", []string{"brake pad", "brake pads", "brakes", "rotors", "rotor"}},
	{"oil filter", []string{"oil filter"}},
	{"engine oil", []string{"engine oil", "motor oil", "oil"}},
	{"air filter", []string{"air filter", "intake filter"}},
	{"spark plugs", []string{"spark plug", "spark plugs"}},
	{"chain", []string{"chain", "sprocket", "sprockets", "chain lube"}},
	{"helmet", []string{"helmet", "helmets"}},
	{"riding gear", []string{"riding jacket", "gloves", "riding boots", "riding pants"}},
	{"wiper blades", []string{"wiper", "wipers", "wiper blade", "wiper blades"}},
	{"headlight bulbs", []string{"headlight", "headlights", "bulb", "bulbs"}},
	{"coolant", []string{"coolant", "antifreeze"}},
	{"vehicle cover", []string{"car cover", "bike cover", "motorcycle cover", "boat cover"}},
	{"exhaust", []string{"exhaust", "muffler", "slip-on"}},
	{"detailing supplies", []string{"wax", "polish", "ceramic coating", "detailing"}},
	{"trailer hitch", []string{"hitch", "trailer hitch", "tow hitch"}},
}

var (
	buyRE       = regexp.MustCompile(`(?i)\b(buy|get|recommend|recommendation|recommendations|best|purchase|shop|shopping|which|looking for|need (a|an|new|some)|replacement|upgrade|suggest|options|compare|worth it)\b`)
	strongBuyRE = regexp.MustCompile(`(?i)\b(buy|recommend|best|purchase|shop|which|looking for|suggest|compare)\b`)
	questionRE  = regexp.MustCompile(`(?i)^\s*(what|how|when|why|where|who|is|are|can|could|does|do|should|will|would)\b`)
	howToRE     = regexp.MustCompile(`(?i)^\s*how\b`)
	wordRE      = regexp.MustCompile(`[a-z0-9][a-z0-9-]*`)
)

// DetectCategory returns the product category mentioned in msg, or "".
func DetectCategory(msg string) string {
	low := " " + strings.Join(wordRE.FindAllString(strings.ToLower(msg), -1), " ") + " "
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(low, " "+kw+" ") {
				return c.name
			}
		}
	}
	return ""
}

// Classify assigns an intent to msg. A product category with buying language
// is product research, except how-to questions without a strong buying word.
// Any other question is a quick question.
func Classify(msg string) Classification {
	cat := DetectCategory(msg)
	isQuestion := strings.Contains(msg, "?") || questionRE.MatchString(msg)

	if cat != "" && buyRE.MatchString(msg) {
		if !howToRE.MatchString(msg) || strongBuyRE.MatchString(msg) {
			return Classification{Intent: IntentProductResearch, Category: cat}
		}
	}
	if isQuestion {
		return Classification{Intent: IntentQuickQuestion, Category: cat}
	}
	return Classification{Intent: IntentGeneral, Category: cat}
}

// knownMakes maps lower-case spellings to the canonical make.
var knownMakes = map[string]string{
	"acura": "Acura", "audi": "Audi", "bmw": "BMW", "buick": "Buick", "cadillac": "Cadillac",
	"chevrolet": "Chevrolet", "chevy": "Chevrolet", "chrysler": "Chrysler", "dodge": "Dodge",
	"ducati": "Ducati", "ferrari": "Ferrari", "fiat": "Fiat", "ford": "Ford", "gmc": "GMC",
	"harley": "Harley-Davidson", "harley-davidson": "Harley-Davidson", "honda": "Honda",
	"hyundai": "Hyundai", "indian": "Indian", "jaguar": "Jaguar", "jeep": "Jeep", "kawasaki": "Kawasaki",
	"kia": "Kia", "ktm": "KTM", "lexus": "Lexus", "lincoln": "Lincoln", "mazda": "Mazda",
	"mercedes": "Mercedes-Benz", "mercedes-benz": "Mercedes-Benz", "mini": "MINI", "mitsubishi": "Mitsubishi",
	"nissan": "Nissan", "pontiac": "Pontiac", "porsche": "Porsche", "ram": "Ram", "subaru": "Subaru",
	"suzuki": "Suzuki", "tesla": "Tesla", "toyota": "Toyota", "triumph": "Triumph", "volkswagen": "Volkswagen",
	"vw": "Volkswagen", "volvo": "Volvo", "yamaha": "Yamaha", "aprilia": "Aprilia", "husqvarna": "Husqvarna",
	"bayliner": "Bayliner", "mastercraft": "MasterCraft", "sea-doo": "Sea-Doo", "airstream": "Airstream",
}

var motorcycleMakes = map[string]bool{
	"Ducati": true, "Harley-Davidson": true, "Indian": true, "KTM": true,
	"Triumph": true, "Aprilia": true, "Husqvarna": true,
}

var boatMakes = map[string]bool{"Bayliner": true, "MasterCraft": true, "Sea-Doo": true}

// Model families that mark a motorcycle for makes that build both.
var motorcycleModelRE = regexp.MustCompile(`(?i)^(cbr|cb|crf|cmx|vfr|grom|gsx|gsxr|sv|dr|v-?strom|hayabusa|ninja|zx|z[0-9]|klr|versys|vulcan|yzf|mt-?[0-9]|r[0-9]|fz|xsr|wr|tenere|africa|gold ?wing)`)

var freeVehicleRE = regexp.MustCompile(`\b((?:19|20)\d{2})\s+([A-Za-z][A-Za-z-]*)\s+([A-Za-z0-9][A-Za-z0-9-]*)`)

// BindVehicle finds the vehicle a conversation is about. It scans the current
// message, then history from newest to oldest. In each text, collection
// vehicles are tried first and a free-text "YYYY Make Model" second. The
// first match wins.
func BindVehicle(message string, history []string, vehicles []domain.Vehicle) *VehicleContext {
	texts := make([]string, 0, len(history)+1)
	texts = append(texts, message)
	for i := len(history) - 1; i >= 0; i-- {
		texts = append(texts, history[i])
	}
	for _, t := range texts {
		if v := matchKnownVehicle(t, vehicles); v != nil {
			return v
		}
		if v := matchFreeText(t); v != nil {
			return v
		}
	}
	return nil
}

func tokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range wordRE.FindAllString(strings.ToLower(s), -1) {
		out[w] = true
	}
	return out
}

func containsPhrase(text, phrase string) bool {
	phrase = strings.Join(wordRE.FindAllString(strings.ToLower(phrase), -1), " ")
	if phrase == "" {
		return false
	}
	text = " " + strings.Join(wordRE.FindAllString(strings.ToLower(text), -1), " ") + " "
	return strings.Contains(text, " "+phrase+" ")
}

func matchKnownVehicle(text string, vehicles []domain.Vehicle) *VehicleContext {
	if len(vehicles) == 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	toks := tokens(text)
	makeCount := map[string]int{}
	for _, v := range vehicles {
		makeCount[strings.ToLower(v.Make)]++
	}
	for _, v := range vehicles {
		if v.Nickname != "" && containsPhrase(text, v.Nickname) {
			return VehicleContextFrom(v)
		}
		if v.Model != "" && containsPhrase(text, v.Model) {
			return VehicleContextFrom(v)
		}
		mk := strings.ToLower(v.Make)
		if mk == "" || !containsPhrase(text, v.Make) {
			continue
		}
		if v.Year > 0 && toks[strconv.Itoa(v.Year)] {
			return VehicleContextFrom(v)
		}
		if makeCount[mk] == 1 {
			return VehicleContextFrom(v)
		}
	}
	return nil
}

func matchFreeText(text string) *VehicleContext {
	for _, m := range freeVehicleRE.FindAllStringSubmatch(text, -1) {
		mk, ok := knownMakes[strings.ToLower(m[2])]
		if !ok {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		return &VehicleContext{
			Type:  string(inferType(mk, m[3])),
			Year:  year,
			Make:  mk,
			Model: m[3],
		}
	}
	return nil
}

func inferType(mk, model string) retail.VehicleType {
	switch {
	case motorcycleMakes[mk]:
		return retail.Motorcycle
	case boatMakes[mk]:
		return retail.Boat
	case motorcycleModelRE.MatchString(model):
		return retail.Motorcycle
	default:
		return retail.Car
	}
}
