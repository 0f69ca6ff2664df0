package models

// Ref returns a reference to id, or nil for an empty id.
func Ref(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func Deref(ref *string) string {
	if ref == nil {
		return ""
	}
	return *ref
}

func RefIs(ref *string, id string) bool {
	return ref != nil && *ref == id
}
