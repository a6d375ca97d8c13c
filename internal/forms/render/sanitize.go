package render

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	slotPolicyOnce sync.Once
	slotPolicy     *bluemonday.Policy
)

func sanitizeSlotMarkup(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(slotSanitizer().Sanitize(trimmed))
}

// slotSanitizer keeps plain form markup and drops scripts, handlers and styles.
func slotSanitizer() *bluemonday.Policy {
	slotPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("div", "span", "p", "label", "fieldset", "legend", "input", "img")

		policy.AllowAttrs("class", "id").Globally()
		policy.AllowAttrs("for").OnElements("label")
		policy.AllowAttrs("type", "name", "value", "checked", "disabled").OnElements("input")
		policy.AllowAttrs("src", "alt", "width", "height").OnElements("img")
		policy.AllowRelativeURLs(true)

		slotPolicy = policy
	})
	return slotPolicy
}
