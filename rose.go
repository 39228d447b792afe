package pri

// ROSEHandler decodes and builds the contents of FACILITY information
// elements (Q.932 ROSE-encoded supplementary-service invocations). The
// core itself only passes facility content through as opaque bytes
// (ie.CallFields.FacilityRaw); a full ROSE/ASN.1 codec is out of scope
// here (§9 "ROSE/supplementary-service codec" — named as a deliberate
// extension point, not implemented by this core). A Controller with
// no ROSEHandler installed simply carries FacilityRaw opaque end to
// end.
type ROSEHandler interface {
	// HandleFacility is given the raw content of an incoming FACILITY
	// IE for a call reference. Returning non-nil bytes requests that
	// the Controller send them back as a new FACILITY IE on the same
	// call.
	HandleFacility(callRef int, raw []byte) ([]byte, error)
}

// SetROSEHandler installs h as the Controller's facility-content
// handler. Passing nil restores pass-through-only behavior.
func (c *Controller) SetROSEHandler(h ROSEHandler) {
	c.rose = h
	if h == nil {
		c.l3.SetFacilityHandler(nil)
		return
	}
	c.l3.SetFacilityHandler(func(callRef uint16, raw []byte) ([]byte, error) {
		return h.HandleFacility(int(callRef), raw)
	})
}

// ROSEHandler returns the currently installed handler, or nil.
func (c *Controller) ROSEHandler() ROSEHandler {
	return c.rose
}
