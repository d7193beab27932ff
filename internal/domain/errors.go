package domain

import "errors"

// Domain errors.
var (
	ErrStoreUnavailable   = errors.New("le registre est momentanément indisponible")
	ErrInvalidRecord      = errors.New("inscription incomplète")
	ErrLegacyCacheCorrupt = errors.New("le cache local des inscriptions est illisible")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrStoreUnavailable, "store_unavailable"},
	{ErrInvalidRecord, "invalid_record"},
	{ErrLegacyCacheCorrupt, "legacy_cache_corrupt"},
}

// Code returns the stable code of the first domain error found in err's
// chain, or "" when err carries none.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
