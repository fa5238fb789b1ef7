package schema

// ChangeInfo describes which tab fields changed in an update event.
// Nil pointers and an empty Status mean the field did not change.
type ChangeInfo struct {
	URL       *string
	Status    LoadStatus
	Audible   *bool
	Pinned    *bool
	Discarded *bool
}

// Relevant reports whether the change touches any field the coordinator tracks.
func (c ChangeInfo) Relevant() bool {
	return c.URL != nil || c.Status != "" || c.Audible != nil || c.Pinned != nil || c.Discarded != nil
}

// URLChanged returns the new url when it changed to a non-empty value.
func (c ChangeInfo) URLChanged() (string, bool) {
	if c.URL == nil || *c.URL == "" {
		return "", false
	}
	return *c.URL, true
}
