package narrative

import "strings"

// DefaultIcon is shown for characters no rule matches.
const DefaultIcon = "👤"

// Character is a named character extracted from the story.
type Character struct {
	Name string
}

// Icon returns the display icon for the character. See [IconFor].
func (c Character) Icon() string {
	return IconFor(c.Name)
}

// iconRule maps any of its keywords (lower-case substrings) to an icon.
type iconRule struct {
	keywords []string
	icon     string
}

// iconRules are evaluated top to bottom and the first match wins, so a name
// containing keywords of several rules always gets the earliest rule's icon.
// "Count Dracula" is a vampire, never a lord; "Lady Arthur" is a lady.
var iconRules = []iconRule{
	{keywords: []string{"dracula", "vampire", "count"}, icon: "🧛"},
	{keywords: []string{"van helsing", "doctor", "dr.", "professor"}, icon: "🩺"},
	{keywords: []string{"mina", "lucy", "lady", "miss", "mrs"}, icon: "👩"},
	{keywords: []string{"jonathan", "arthur", "quincey", "lord", "mr"}, icon: "🧔"},
	{keywords: []string{"king", "queen", "prince", "princess"}, icon: "👑"},
	{keywords: []string{"wolf"}, icon: "🐺"},
	{keywords: []string{"witch", "wizard", "mage"}, icon: "🧙"},
	{keywords: []string{"captain", "sailor"}, icon: "⚓"},
}

// IconFor returns the icon of the first rule with a keyword contained in
// name (case-insensitive), or [DefaultIcon].
func IconFor(name string) string {
	lower := strings.ToLower(name)
	for _, r := range iconRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.icon
			}
		}
	}
	return DefaultIcon
}

// Characters wraps names into Characters, dropping blanks.
func Characters(names []string) []Character {
	out := make([]Character, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, Character{Name: n})
		}
	}
	return out
}
