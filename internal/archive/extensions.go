package archive

import (
	"encoding/json"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// NormalizeExtension lower-cases ext and adds the leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// NewExtensionSet builds an allow-set from raw extensions.
func NewExtensionSet(exts ...string) mapset.Set[string] {
	set := mapset.NewSet[string]()
	for _, e := range exts {
		if n := NormalizeExtension(e); n != "" {
			set.Add(n)
		}
	}
	return set
}

// ParseExtensions accepts either a comma-separated list (".py, java") or a
// JSON object mapping extension to enabled flag ({"py": true, "c": false}).
func ParseExtensions(raw string) (mapset.Set[string], error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var flags map[string]bool
		if err := json.Unmarshal([]byte(raw), &flags); err != nil {
			return nil, err
		}
		return FromFlags(flags), nil
	}
	return NewExtensionSet(strings.Split(raw, ",")...), nil
}

// FromFlags keeps the extensions whose flag is true.
func FromFlags(flags map[string]bool) mapset.Set[string] {
	set := mapset.NewSet[string]()
	for ext, on := range flags {
		if n := NormalizeExtension(ext); on && n != "" {
			set.Add(n)
		}
	}
	return set
}

// allowedFile reports whether the file name carries an allowed extension.
func (in *Ingestor) allowedFile(name string) bool {
	return in.allowed.Contains(strings.ToLower(filepath.Ext(name)))
}
