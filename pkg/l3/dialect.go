package l3

import "github.com/gopri/pri/pkg/ie"

// Dialect is the full switch-dialect contract the call engine needs:
// ie.Dialect for IE encoding plus the two decisions that live above
// the IE layer (§6(ii), §6(iii)). pkg/dialect.Profile implements this.
type Dialect interface {
	ie.Dialect
	MustNormalizePresentation() bool
	SetupWantsNonISDNProgress() bool
}
