package templates

import (
	"strings"

	"github.com/lucasvieira/zapcamp/internal/models"
)

// Render substitutes {placeholder} variables in a template body with fields
// from the contact. Unknown placeholders are left as-is.
func Render(content string, c *models.Contact) string {
	if c == nil {
		return content
	}
	replacer := strings.NewReplacer(
		"{name}", c.Name,
		"{phone}", c.Phone,
		"{address}", c.Address,
		"{category}", c.Category,
	)
	return replacer.Replace(content)
}

// Variables lists the known placeholders present in a template body.
func Variables(content string) []string {
	var found []string
	for _, v := range []string{"{name}", "{phone}", "{address}", "{category}"} {
		if strings.Contains(content, v) {
			found = append(found, strings.Trim(v, "{}"))
		}
	}
	return found
}
