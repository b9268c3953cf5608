package iso3166

import (
	"encoding/json"
	"io/fs"
	"os"
	"path"

	perr "locnorm/internal/platform/errors"
)

// iso-codes file names, as shipped by Debian and bundled by pycountry
const (
	countriesFile    = "iso_3166-1.json"
	subdivisionsFile = "iso_3166-2.json"
)

type isoCountries struct {
	Entries []Country `json:"3166-1"`
}

type isoSubdivisions struct {
	Entries []Subdivision `json:"3166-2"`
}

// LoadDir reads iso_3166-1.json and iso_3166-2.json from dir
func LoadDir(dir string) (*Dataset, error) {
	return loadFS(os.DirFS(dir), ".", dir)
}

func loadFS(fsys fs.FS, dir, source string) (*Dataset, error) {
	var cs isoCountries
	if err := readJSON(fsys, path.Join(dir, countriesFile), source, &cs); err != nil {
		return nil, err
	}
	var ss isoSubdivisions
	if err := readJSON(fsys, path.Join(dir, subdivisionsFile), source, &ss); err != nil {
		return nil, err
	}
	return build(source, cs.Entries, ss.Entries)
}

func readJSON(fsys fs.FS, name, source string, dst any) error {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeConfig, "iso3166: read %s from %s", name, source)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeValidation, "iso3166: decode %s from %s", name, source)
	}
	return nil
}
