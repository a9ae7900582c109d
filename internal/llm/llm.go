// Package llm defines the narrow text-generation capability the assistant
// depends on and a Gemini implementation of it.
//
// Callers see only Request and Response. Vendor request/response shapes stay
// inside the implementation.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned by Disabled and by implementations missing
// credentials.
var ErrNotConfigured = errors.New("llm: not configured")

// Request is one generation call.
type Request struct {
	Prompt string
	// System is an optional system instruction.
	System string
	// WebSearch enables search grounding when the backend supports it.
	WebSearch bool
	// JSON asks for a JSON object response. Callers still run ExtractJSON on
	// the text since grounded calls cannot force a MIME type.
	JSON        bool
	Temperature *float32
}

// Source is a grounding citation.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Response is the generated text and any deduplicated sources.
type Response struct {
	Text    string
	Sources []Source
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Disabled is the Generator used when no API key is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) (*Response, error) {
	return nil, ErrNotConfigured
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(v float32) *float32 { return &v }

// ExtractJSON returns the outermost JSON object or array in s, tolerating
// markdown code fences and surrounding prose. It returns "" when none is
// found.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	open, close := s[start], byte('}')
	if open == '[' {
		close = ']'
	}

	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case esc:
			esc = false
		case inStr && c == '\\':
			esc = true
		case c == '"':
			inStr = !inStr
		case inStr:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// DedupeSources drops empty and repeated URLs, keeping first-seen order.
func DedupeSources(in []Source) []Source {
	seen := make(map[string]struct{}, len(in))
	out := make([]Source, 0, len(in))
	for _, s := range in {
		u := strings.TrimSpace(s.URL)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if strings.TrimSpace(s.Title) == "" {
			s.Title = u
		}
		s.URL = u
		out = append(out, s)
	}
	return out
}
