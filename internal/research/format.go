package research

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-garage-backend/internal/llm"
	"github.com/tbourn/go-garage-backend/internal/retail"
)

// FormatDiscovery renders a discovery result as the assistant's reply.
func FormatDiscovery(d *DiscoveryResult, v *VehicleContext) string {
	var b strings.Builder
	if v != nil {
		fmt.Fprintf(&b, "**%s for your %s**\n\n", titleCase(d.Category), v.Label())
	} else {
		fmt.Fprintf(&b, "**%s**\n\n", titleCase(d.Category))
	}
	b.WriteString(strings.TrimSpace(d.Summary))
	b.WriteString("\n")
	if len(d.Options) > 0 {
		b.WriteString("\n**Options**\n")
		for _, o := range d.Options {
			if o.Description != "" {
				fmt.Fprintf(&b, "- **%s**: %s\n", o.Name, o.Description)
			} else {
				fmt.Fprintf(&b, "- **%s**\n", o.Name)
			}
		}
	}
	if len(d.Considerations) > 0 {
		b.WriteString("\n**What to consider**\n")
		for _, c := range d.Considerations {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(d.Questions) > 0 {
		b.WriteString("\nTo narrow it down:\n")
		for i, q := range d.Questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}
	writeSources(&b, d.Sources)
	return strings.TrimSpace(b.String())
}

// FormatRecommendations renders a research result as the assistant's reply.
func FormatRecommendations(r *ResearchResult, v *VehicleContext) string {
	var b strings.Builder
	if v != nil {
		fmt.Fprintf(&b, "**Recommended %s for your %s**\n\n", r.Category, v.Label())
	} else {
		fmt.Fprintf(&b, "**Recommended %s**\n\n", r.Category)
	}
	if s := strings.TrimSpace(r.Summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	for i, rec := range r.Recommendations {
		rank := rec.Rank
		if rank <= 0 {
			rank = i + 1
		}
		name := rec.Name
		if rec.URL != "" {
			name = fmt.Sprintf("[%s](%s)", rec.Name, rec.URL)
		}
		fmt.Fprintf(&b, "%d. **%s**", rank, name)
		if rec.Price != nil {
			fmt.Fprintf(&b, " ($%.2f", *rec.Price)
			if rec.Retailer != "" {
				fmt.Fprintf(&b, " at %s", rec.Retailer)
			}
			b.WriteString(")")
		} else if rec.Retailer != "" {
			fmt.Fprintf(&b, " (%s)", rec.Retailer)
		}
		b.WriteString("\n")
		if rec.Reasoning != "" {
			fmt.Fprintf(&b, "   %s\n", rec.Reasoning)
		}
		if len(rec.Pros) > 0 {
			fmt.Fprintf(&b, "   Pros: %s\n", strings.Join(rec.Pros, "; "))
		}
		if len(rec.Cons) > 0 {
			fmt.Fprintf(&b, "   Cons: %s\n", strings.Join(rec.Cons, "; "))
		}
	}
	if r.FitmentNote != "" {
		fmt.Fprintf(&b, "\n_Fitment: %s_\n", r.FitmentNote)
	}
	writeSources(&b, r.Sources)
	return strings.TrimSpace(b.String())
}

// offlineIntro opens every reply rendered without the model.
const offlineIntro = "I can't reach the research assistant right now, so here is what I have on hand."

// FormatOffline renders retailer products and the collection summary without
// the model. Either may be empty.
func FormatOffline(products []retail.Product, summary string, v *VehicleContext) string {
	var b strings.Builder
	b.WriteString(offlineIntro)
	b.WriteString("\n")
	if len(products) > 0 {
		if v != nil {
			fmt.Fprintf(&b, "\n**Retailer listings for your %s**\n", v.Label())
		} else {
			b.WriteString("\n**Retailer listings**\n")
		}
		for _, p := range products {
			name := p.Name
			if p.URL != "" {
				name = fmt.Sprintf("[%s](%s)", p.Name, p.URL)
			}
			fmt.Fprintf(&b, "- %s", name)
			switch {
			case p.Price != nil && p.Retailer != "":
				fmt.Fprintf(&b, " ($%.2f at %s)", *p.Price, p.Retailer)
			case p.Price != nil:
				fmt.Fprintf(&b, " ($%.2f)", *p.Price)
			case p.Retailer != "":
				fmt.Fprintf(&b, " (%s)", p.Retailer)
			}
			b.WriteString("\n")
		}
		b.WriteString("\nCheck fitment with the retailer before ordering.\n")
	}
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString("\n**Your collection**\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func writeSources(b *strings.Builder, sources []llm.Source) {
	if len(sources) == 0 {
		return
	}
	b.WriteString("\nSources:\n")
	for _, s := range sources {
		fmt.Fprintf(b, "- [%s](%s)\n", s.Title, s.URL)
	}
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
