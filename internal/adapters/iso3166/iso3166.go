// Package iso3166 serves the authoritative country and subdivision lists
// from the embedded Debian iso-codes JSON, an iso-codes directory or a
// curated YAML snapshot
package iso3166

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/validate"

	"gopkg.in/yaml.v3"
)

//go:embed data/iso_3166-1.json data/iso_3166-2.json
var dataFS embed.FS

// ErrNoSubdivisions is returned when the dataset lists nothing for a country
var ErrNoSubdivisions = errors.New("iso3166: no subdivisions for country")

// Country is one ISO 3166-1 entry
type Country struct {
	Alpha2 string `yaml:"alpha2" json:"alpha_2" validate:"len=2,uppercase"`
	Alpha3 string `yaml:"alpha3" json:"alpha_3" validate:"len=3,uppercase"`
	Name   string `yaml:"name" json:"name" validate:"required"`
}

// Subdivision is one ISO 3166-2 entry
type Subdivision struct {
	Code string `yaml:"code" json:"code" validate:"required,contains=-"`
	Name string `yaml:"name" json:"name" validate:"required"`
	Type string `yaml:"type" json:"type"`
}

// CountryCode is the alpha-2 prefix of the subdivision code
func (s Subdivision) CountryCode() string {
	cc, _, _ := strings.Cut(s.Code, "-")
	return cc
}

// Acronym is the segment after the country prefix, "BR-SP" -> "SP"
func (s Subdivision) Acronym() string {
	_, rest, ok := strings.Cut(s.Code, "-")
	if !ok {
		return ""
	}
	return rest
}

// Dataset is an immutable, validated snapshot
type Dataset struct {
	Source    string
	countries []Country
	subs      map[string][]Subdivision
}

type yamlFile struct {
	Countries    []Country                `yaml:"countries"`
	Subdivisions map[string][]Subdivision `yaml:"subdivisions"`
}

// Load resolves path to a dataset: empty is the embedded iso-codes copy,
// a .yaml or .yml file is a curated snapshot, anything else an iso-codes dir
func Load(path string) (*Dataset, error) {
	switch {
	case path == "":
		return Embedded()
	case isYAML(path):
		return LoadYAML(path)
	default:
		return LoadDir(path)
	}
}

// Embedded parses the compiled-in iso-codes files
func Embedded() (*Dataset, error) {
	return loadFS(dataFS, "data", "embedded")
}

// LoadYAML reads a curated snapshot with countries and subdivisions keyed by alpha-2
func LoadYAML(file string) (*Dataset, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfig, "iso3166: read %s", file)
	}
	return parseYAML(b, file)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func parseYAML(b []byte, source string) (*Dataset, error) {
	var f yamlFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "iso3166: decode yaml")
	}
	var subs []Subdivision
	for cc, list := range f.Subdivisions {
		for _, s := range list {
			if s.CountryCode() != cc {
				return nil, perr.Newf(perr.ErrorCodeValidation, "iso3166: subdivision %s listed under %s", s.Code, cc)
			}
			subs = append(subs, s)
		}
	}
	return build(source, f.Countries, subs)
}

// build validates entries and indexes subdivisions by country
func build(source string, countries []Country, subs []Subdivision) (*Dataset, error) {
	if len(countries) == 0 {
		return nil, perr.Newf(perr.ErrorCodeValidation, "iso3166: %s dataset has no countries", source)
	}
	seen := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		if err := validate.Struct(c); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "iso3166: country %q", c.Name)
		}
		if _, dup := seen[c.Alpha2]; dup {
			return nil, perr.Newf(perr.ErrorCodeValidation, "iso3166: duplicate alpha2 %s", c.Alpha2)
		}
		seen[c.Alpha2] = struct{}{}
	}

	idx := make(map[string][]Subdivision)
	for _, s := range subs {
		if err := validate.Struct(s); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "iso3166: subdivision %q", s.Code)
		}
		cc := s.CountryCode()
		idx[cc] = append(idx[cc], s)
	}
	for cc := range idx {
		sort.Slice(idx[cc], func(i, j int) bool { return idx[cc][i].Code < idx[cc][j].Code })
	}

	return &Dataset{Source: source, countries: countries, subs: idx}, nil
}

// Countries returns a copy of the country list in dataset order
func (d *Dataset) Countries() []Country {
	return append([]Country(nil), d.countries...)
}

// Subdivisions returns the subdivisions of an alpha-2 country, sorted by code
func (d *Dataset) Subdivisions(alpha2 string) ([]Subdivision, error) {
	list := d.subs[strings.ToUpper(alpha2)]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSubdivisions, alpha2)
	}
	return append([]Subdivision(nil), list...), nil
}
