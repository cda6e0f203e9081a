package session

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/atomicstack/tuikit/internal/logging"
)

// localeEnv lists the variables consulted after the configured locale, most
// specific first.
var localeEnv = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// deriveLocales returns the preferred locales as BCP 47 tags, most
// preferred first. Each region-specific tag is followed by its base
// language, and English is always present as the last resort.
func deriveLocales(configured string, environ []string) []string {
	env := make(map[string]string, len(environ))
	for _, entry := range environ {
		if k, v, ok := strings.Cut(entry, "="); ok {
			env[k] = v
		}
	}

	candidates := []string{configured}
	for _, name := range localeEnv {
		candidates = append(candidates, env[name])
	}

	seen := make(map[string]bool)
	var out []string
	add := func(tag string) {
		if tag == "" || tag == "und" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}
	for _, raw := range candidates {
		value := posixToBCP47(raw)
		if value == "" {
			continue
		}
		tag, err := language.Parse(value)
		if err != nil {
			logging.Defer("locale %q ignored: %v", raw, err)
			continue
		}
		add(tag.String())
		if base, conf := tag.Base(); conf != language.No {
			add(base.String())
		}
	}
	add(language.English.String())
	return out
}

// posixToBCP47 turns "de_DE.UTF-8@euro" into "de-DE". The C and POSIX
// locales carry no language and map to "".
func posixToBCP47(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	switch v {
	case "", "C", "POSIX":
		return ""
	}
	return strings.ReplaceAll(v, "_", "-")
}
