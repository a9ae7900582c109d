// Package retail provides pluggable retailer search tools and a registry that
// fans a product query out to every tool registered for a vehicle type.
//
// Tools never verify fitment. Every Product carries FitmentVerified=false and
// callers hand the vehicle year/make/model to the LLM to reason about it.
package retail

import (
	"context"
	"strings"
)

// VehicleType is the coarse vehicle category tools are keyed by.
type VehicleType string

const (
	Car        VehicleType = "car"
	Motorcycle VehicleType = "motorcycle"
	Boat       VehicleType = "boat"
	Trailer    VehicleType = "trailer"
)

// ParseVehicleType maps free-form input ("Motorcycles", " BOAT ") to a known
// VehicleType. Unknown values map to Car.
func ParseVehicleType(s string) VehicleType {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "s")
	switch VehicleType(s) {
	case Motorcycle, Boat, Trailer:
		return VehicleType(s)
	case "motorbike", "bike":
		return Motorcycle
	default:
		return Car
	}
}

// Product is a single retailer search hit. Optional numeric fields are nil
// when the page did not carry them.
type Product struct {
	Name            string   `json:"name"`
	Brand           string   `json:"brand,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	URL             string   `json:"url,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewCount     *int     `json:"reviewCount,omitempty"`
	InStock         *bool    `json:"inStock,omitempty"`
	Retailer        string   `json:"retailer"`
	FitmentVerified bool     `json:"fitmentVerified"`
}

// SearchParams is the input handed to every tool.
type SearchParams struct {
	Query string `json:"query"`
	Year  int    `json:"year,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	// Limit caps the number of products a single tool returns. Zero means
	// the tool default.
	Limit int `json:"limit,omitempty"`
}

// Tool is a retailer search capability.
type Tool interface {
	Name() string
	RetailerName() string
	VehicleTypes() []VehicleType
	Search(ctx context.Context, p SearchParams) ([]Product, error)
}

func supports(t Tool, vt VehicleType) bool {
	for _, v := range t.VehicleTypes() {
		if v == vt {
			return true
		}
	}
	return false
}

func cloneProducts(in []Product) []Product {
	if in == nil {
		return nil
	}
	out := make([]Product, len(in))
	for i, p := range in {
		out[i] = p
		if p.Price != nil {
			v := *p.Price
			out[i].Price = &v
		}
		if p.Rating != nil {
			v := *p.Rating
			out[i].Rating = &v
		}
		if p.ReviewCount != nil {
			v := *p.ReviewCount
			out[i].ReviewCount = &v
		}
		if p.InStock != nil {
			v := *p.InStock
			out[i].InStock = &v
		}
	}
	return out
}
