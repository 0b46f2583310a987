package batch

// downsizeCatalog maps a detected array type to the downsizing targets
// that can be derived from it. Downsizing only goes from higher-probe
// arrays to lower-probe ones, so MSA48 has no targets.
var downsizeCatalog = map[ArrayType][]DownsizeTarget{
	EPICv2: {ToHM450K, ToMSA48},
	EPICv1: {ToHM450K, ToMSA48},
	HM450K: {ToMSA48},
	MSA48:  {},
}

// AvailableTargets returns the downsizing targets available for the
// given detected array type. Unknown array types have no targets.
func AvailableTargets(detected ArrayType) []DownsizeTarget {
	return downsizeCatalog[detected]
}
