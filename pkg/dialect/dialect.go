// Package dialect holds the switch-dialect profile: the one enum
// spec.md §6 allows to influence wire encoding (4ESS audio remap,
// DMS100/4ESS presentation normalization, NI2 non-ISDN progress), plus
// an ini.v1-backed loader for overriding the built-in profile table,
// grounded on the teacher's EDS parser (pkg/od/parser_v1.go) — same
// library, repurposed from object-dictionary sections to dialect
// profile sections.
package dialect

// Switch identifies a central-office signaling dialect.
type Switch int

const (
	SwitchNational Switch = iota
	Switch4ESS
	SwitchNI2
	SwitchDMS100
)

func (s Switch) String() string {
	switch s {
	case Switch4ESS:
		return "4ESS"
	case SwitchNI2:
		return "NI2"
	case SwitchDMS100:
		return "DMS100"
	default:
		return "NATIONAL"
	}
}

// Profile is the concrete dialect behavior, satisfying ie.Dialect and
// carrying the two extra decisions (§6) that live above the IE layer:
// presentation normalization and NI2 non-ISDN progress.
type Profile struct {
	Switch Switch

	// NormalizePresentation makes outbound SETUP carry the "network
	// provided" screening indicator on the calling number, since these
	// switches reject other bit patterns (DMS100/4ESS, §6(ii)). The
	// presentation indicator itself is left as the caller gave it.
	NormalizePresentation bool
	// NonISDNProgressOnSetup adds a "caller non-ISDN" progress
	// indicator to outbound SETUP when the caller is non-ISDN (NI2,
	// §6(iii)).
	NonISDNProgressOnSetup bool
}

func (p *Profile) Is4ESS() bool   { return p.Switch == Switch4ESS }
func (p *Profile) IsNI2() bool    { return p.Switch == SwitchNI2 }
func (p *Profile) IsDMS100() bool { return p.Switch == SwitchDMS100 }

// MustNormalizePresentation and SetupWantsNonISDNProgress satisfy
// pkg/l3.Dialect; named apart from the struct fields they read since
// Go disallows a method and a field sharing one name.
func (p *Profile) MustNormalizePresentation() bool { return p.NormalizePresentation }
func (p *Profile) SetupWantsNonISDNProgress() bool { return p.NonISDNProgressOnSetup }

// Default returns the built-in profile table, keyed by Switch. It is
// always available even if no ini file is loaded.
func Default() map[Switch]*Profile {
	return map[Switch]*Profile{
		SwitchNational: {Switch: SwitchNational},
		Switch4ESS:     {Switch: Switch4ESS, NormalizePresentation: true},
		SwitchNI2:      {Switch: SwitchNI2, NonISDNProgressOnSetup: true},
		SwitchDMS100:   {Switch: SwitchDMS100, NormalizePresentation: true},
	}
}

// ByName resolves a profile name as it would appear in an ini
// [dialect] section or a CLI flag.
func ByName(name string) (Switch, bool) {
	switch name {
	case "national", "":
		return SwitchNational, true
	case "4ess":
		return Switch4ESS, true
	case "ni2":
		return SwitchNI2, true
	case "dms100":
		return SwitchDMS100, true
	default:
		return SwitchNational, false
	}
}
