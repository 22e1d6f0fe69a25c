// Package locate finds the element a visit interacts with, trying an ordered
// list of strategies until one matches.
package locate

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/browser"
)

// Strategy is one element-matching rule.
type Strategy interface {
	Name() string
	Query() browser.Query
}

// TextVariants matches a clickable element whose visible text contains any of the variants.
type TextVariants []string

func (t TextVariants) Name() string { return "text" }

func (t TextVariants) Query() browser.Query {
	conds := make([]string, 0, len(t))
	for _, v := range t {
		if v = strings.TrimSpace(v); v != "" {
			conds = append(conds, fmt.Sprintf("contains(normalize-space(.), %s)", xpathLiteral(v)))
		}
	}
	if len(conds) == 0 {
		conds = append(conds, "false()")
	}
	return browser.Query{
		Expr: fmt.Sprintf("//*[self::a or self::button or @role='button' or @onclick][%s]", strings.Join(conds, " or ")),
		Kind: browser.XPath,
	}
}

// HrefContains matches the first link whose href contains the substring.
type HrefContains string

func (h HrefContains) Name() string { return "href" }

func (h HrefContains) Query() browser.Query {
	return browser.Query{Expr: fmt.Sprintf(`a[href*=%s]`, cssString(string(h))), Kind: browser.CSS}
}

// Selector matches a CSS selector verbatim.
type Selector string

func (s Selector) Name() string { return "selector" }

func (s Selector) Query() browser.Query {
	return browser.Query{Expr: string(s), Kind: browser.CSS}
}

// ForTarget builds the ordered strategy list for a target. Search targets look
// for a result linking to the destination host. Direct targets try text
// variants, then a link to the host, then a configured selector.
func ForTarget(t schemas.Target, defaultTexts []string) []Strategy {
	hints := t.Match
	host := hints.HrefContains
	if host == "" {
		host = t.Host()
	}

	var out []Strategy
	if t.IsSearch() {
		if host != "" {
			out = append(out, HrefContains(host))
		}
		if len(hints.Texts) > 0 {
			out = append(out, TextVariants(hints.Texts))
		}
	} else {
		texts := hints.Texts
		if len(texts) == 0 {
			texts = defaultTexts
		}
		if len(texts) > 0 {
			out = append(out, TextVariants(texts))
		}
		if hints.HrefContains != "" {
			out = append(out, HrefContains(hints.HrefContains))
		}
	}
	if hints.Selector != "" {
		out = append(out, Selector(hints.Selector))
	}
	return out
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+p+`"`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
