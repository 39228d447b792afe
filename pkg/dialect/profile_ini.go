package dialect

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"
)

// LoadProfiles reads dialect overrides from an ini file. Each section
// is named after a Switch ("national", "4ess", "ni2", "dms100") and
// may set normalize_presentation and non_isdn_progress_on_setup as
// booleans; anything unset keeps the built-in Default() value. This
// mirrors pkg/od's EDS-section-to-struct-field convention, applied to
// a far smaller schema.
func LoadProfiles(file any) (map[Switch]*Profile, error) {
	profiles := Default()

	cfg, err := ini.Load(file)
	if err != nil {
		return nil, fmt.Errorf("dialect: load profile file: %w", err)
	}

	for _, section := range cfg.Sections() {
		name := section.Name()
		sw, ok := ByName(name)
		if !ok {
			continue
		}
		p := profiles[sw]
		if k := section.Key("normalize_presentation"); k.String() != "" {
			v, err := strconv.ParseBool(k.String())
			if err != nil {
				return nil, fmt.Errorf("dialect: section %q: normalize_presentation: %w", name, err)
			}
			p.NormalizePresentation = v
		}
		if k := section.Key("non_isdn_progress_on_setup"); k.String() != "" {
			v, err := strconv.ParseBool(k.String())
			if err != nil {
				return nil, fmt.Errorf("dialect: section %q: non_isdn_progress_on_setup: %w", name, err)
			}
			p.NonISDNProgressOnSetup = v
		}
	}
	return profiles, nil
}
