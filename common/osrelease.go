package common

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const DefaultOSReleasePath = "/etc/os-release"

// OSRelease holds the identification fields of an os-release file.
type OSRelease struct {
	ID         string
	IDLike     []string
	Name       string
	VersionID  string
	PrettyName string
}

// LoadOSRelease parses an os-release file. Missing keys are left empty.
func LoadOSRelease(path string) (*OSRelease, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:        true,
		UnescapeValueDoubleQuotes:  true,
		AllowPythonMultilineValues: false,
	}, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return osReleaseFromSection(cfg.Section(ini.DefaultSection)), nil
}

// ParseOSRelease parses os-release content from memory.
func ParseOSRelease(data []byte) (*OSRelease, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:       true,
		UnescapeValueDoubleQuotes: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse os-release")
	}
	return osReleaseFromSection(cfg.Section(ini.DefaultSection)), nil
}

func osReleaseFromSection(sec *ini.Section) *OSRelease {
	get := func(key string) string {
		return strings.Trim(sec.Key(key).String(), `"'`)
	}
	rel := &OSRelease{
		ID:         strings.ToLower(get("ID")),
		Name:       get("NAME"),
		VersionID:  get("VERSION_ID"),
		PrettyName: get("PRETTY_NAME"),
	}
	if like := get("ID_LIKE"); like != "" {
		rel.IDLike = strings.Fields(strings.ToLower(like))
	}
	return rel
}

// Is reports whether the distribution is id or derives from it.
func (r *OSRelease) Is(id string) bool {
	if r == nil {
		return false
	}
	if r.ID == id {
		return true
	}
	for _, like := range r.IDLike {
		if like == id {
			return true
		}
	}
	return false
}
