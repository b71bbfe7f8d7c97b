package handler

const (
	errInternalServer   = "Internal server error"
	errEntryNotFound    = "Entry not found"
	errOverwriteDefault = "Entry is a built-in default and cannot be overwritten or deleted"
	errValidation       = "Entry failed validation"
	errUnknownEntryKind = "Unrecognized entry kind"
)
