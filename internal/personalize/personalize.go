// Package personalize substitutes per-recipient parameters into message text
// using Liquid templates.
package personalize

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/osteele/liquid"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*[^{}]*?\s*\}\}`)

// HasPlaceholder reports whether text contains a {{ ... }} parameter.
func HasPlaceholder(text string) bool {
	return placeholderPattern.MatchString(text)
}

// Directory looks up the attributes a template can reference for one
// recipient. A recipient unknown to the directory yields empty attributes.
type Directory interface {
	Attributes(ctx context.Context, recipientID string) (map[string]interface{}, error)
}

// Substituter renders message templates per recipient. Parsed templates are
// cached by source text.
type Substituter struct {
	engine *liquid.Engine
	dir    Directory
	cache  sync.Map // map[string]*liquid.Template
}

// NewSubstituter creates a substituter backed by dir.
func NewSubstituter(dir Directory) *Substituter {
	engine := liquid.NewEngine()
	// {{ name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" {
			return fallback
		}
		return value
	})
	engine.RegisterFilter("upcase_first", upcaseFirst)
	return &Substituter{engine: engine, dir: dir}
}

func upcaseFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Replace renders text for the given recipient. Unknown variables render empty.
func (s *Substituter) Replace(ctx context.Context, text, recipientID string) (string, error) {
	if !HasPlaceholder(text) {
		return text, nil
	}

	tpl, err := s.template(text)
	if err != nil {
		return "", err
	}

	attrs, err := s.dir.Attributes(ctx, recipientID)
	if err != nil {
		return "", fmt.Errorf("recipient attributes: %w", err)
	}
	bindings := liquid.Bindings{"user_id": recipientID}
	for k, v := range attrs {
		bindings[k] = v
	}

	out, rerr := tpl.RenderString(bindings)
	if rerr != nil {
		return "", fmt.Errorf("render template: %w", rerr)
	}
	return out, nil
}

func (s *Substituter) template(text string) (*liquid.Template, error) {
	if cached, ok := s.cache.Load(text); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, perr := s.engine.ParseString(text)
	if perr != nil {
		return nil, fmt.Errorf("parse template: %w", perr)
	}
	s.cache.Store(text, tpl)
	return tpl, nil
}
