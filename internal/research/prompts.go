package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tbourn/go-garage-backend/internal/retail"
)

// Turn is one prior message handed to the LLM as conversation context.
type Turn struct {
	Role    string
	Content string
}

const assistantPersona = `You are the garage assistant for a vehicle collection app. You help owners of cars, motorcycles, boats and trailers with maintenance, registration, parts and buying decisions. Be concise and practical. Use the collection context when it is relevant and never invent vehicles the owner does not have.`

// SystemPrompt assembles the system instruction from the persona, the
// collection summary and the bound vehicle.
func SystemPrompt(collectionSummary string, v *VehicleContext) string {
	var b strings.Builder
	b.WriteString(assistantPersona)
	if s := strings.TrimSpace(collectionSummary); s != "" {
		b.WriteString("\n\nCollection context:\n")
		b.WriteString(s)
	}
	if v != nil {
		fmt.Fprintf(&b, "\n\nThe conversation is about the owner's %s.", v.Label())
	}
	return b.String()
}

// ChatPrompt renders history plus the new message as a transcript.
func ChatPrompt(history []Turn, message string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			role := "User"
			if t.Role == "assistant" {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(t.Content))
		}
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(strings.TrimSpace(message))
	b.WriteString("\nAssistant:")
	return b.String()
}

// productDigest is the slice of a product the LLM needs to rank it.
type productDigest struct {
	Name     string   `json:"name"`
	Brand    string   `json:"brand,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	Reviews  *int     `json:"reviews,omitempty"`
	InStock  *bool    `json:"inStock,omitempty"`
	Retailer string   `json:"retailer"`
	URL      string   `json:"url,omitempty"`
}

func digestProducts(products []retail.Product) string {
	if len(products) == 0 {
		return "[]"
	}
	out := make([]productDigest, 0, len(products))
	for _, p := range products {
		out = append(out, productDigest{
			Name: p.Name, Brand: p.Brand, Price: p.Price, Rating: p.Rating,
			Reviews: p.ReviewCount, InStock: p.InStock, Retailer: p.Retailer, URL: p.URL,
		})
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func fitmentLine(v *VehicleContext) string {
	if v == nil {
		return "No specific vehicle is known; keep advice general and mention what fitment details matter."
	}
	return fmt.Sprintf("Vehicle: %s (%s). Retailer listings are NOT fitment-verified; reason about compatibility with this year, make and model yourself and say when the owner should double-check.", v.Label(), v.VehicleType())
}

// DiscoveryPrompt asks for an open-ended survey of a product category.
func DiscoveryPrompt(category, message string, v *VehicleContext, products []retail.Product) string {
	return fmt.Sprintf(`The owner asked: %q

Research the product category %q. Explain what types, specs and attributes exist, what matters when choosing, and ask the owner two or three questions that would narrow the choice (budget, riding or driving style, climate, brand preferences).

%s

Retailer listings found so far (may be empty):
%s

Respond with a single JSON object and nothing else:
{"summary": string, "options": [{"name": string, "description": string}], "considerations": [string], "questions": [string]}`,
		strings.TrimSpace(message), category, fitmentLine(v), digestProducts(products))
}

// RecommendationPrompt asks for ranked picks after the owner refined.
func RecommendationPrompt(s State, refinement string, products []retail.Product) string {
	var disc string
	if s.Discovery != nil {
		disc = s.Discovery.Summary
	}
	prefs := append(append([]string(nil), s.Preferences...), strings.TrimSpace(refinement))
	return fmt.Sprintf(`Earlier you researched %q for the owner:
%s

Owner preferences: %s

%s

Retailer listings:
%s

Rank the three best options for this owner. Prefer listed products when they fit; otherwise recommend well-known products and leave url empty. For each give reasoning, pros and cons.

Respond with a single JSON object and nothing else:
{"summary": string, "recommendations": [{"rank": number, "name": string, "brand": string, "retailer": string, "price": number, "url": string, "reasoning": string, "pros": [string], "cons": [string]}], "fitmentNote": string}`,
		s.ProductCategory, disc, strings.Join(prefs, "; "), fitmentLine(s.Vehicle), digestProducts(products))
}

// TitlePrompt asks for a short session title from the first exchange.
func TitlePrompt(message, reply string) string {
	return fmt.Sprintf(`Write a short title (at most 6 words, no quotes, no trailing punctuation) for a conversation that starts like this:

User: %s
Assistant: %s`, strings.TrimSpace(message), truncateRunes(strings.TrimSpace(reply), 500))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
