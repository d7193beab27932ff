package i18n

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"lerngruppe/internal/domain"
)

func TestTranslator_T(t *testing.T) {
	tr := NewTranslator("de", nil)

	require.Equal(t, "Anna ist der Lerngruppe beigetreten.", tr.T("de", "announce.joined", map[string]any{"Name": "Anna"}))
	require.Equal(t, "Anna joined the study group.", tr.T("en", "announce.joined", map[string]any{"Name": "Anna"}))
	require.Equal(t, "Anna a rejoint le groupe d'étude.", tr.T("fr", "announce.joined", map[string]any{"Name": "Anna"}))

	// Unknown locale falls back to the default one, unknown key to itself.
	require.Equal(t, "Noch niemand angemeldet.", tr.T("pt", "announce.roster_empty", nil))
	require.Equal(t, "does.not.exist", tr.T("en", "does.not.exist", nil))
	require.Equal(t, "", tr.T("en", "", nil))
}

func TestTranslator_Plural(t *testing.T) {
	tr := NewTranslator("en", nil)
	require.Equal(t, "1 participant", tr.T("en", "announce.roster_footer", map[string]any{"Count": 1}))
	require.Equal(t, "3 participants", tr.T("en", "announce.roster_footer", map[string]any{"Count": 3}))
}

func TestTranslator_Locale(t *testing.T) {
	tr := NewTranslator("de", nil)

	tests := map[string]string{
		"":                   "de",
		"en-US,en;q=0.9":     "en",
		"fr-CH, fr;q=0.9":    "fr",
		"ja":                 "de",
		"not a header;;;":    "de",
		"es;q=0.9, en;q=0.5": "en",
	}
	for header, want := range tests {
		require.Equal(t, want, tr.Locale(header), header)
	}
}

func TestErrorMessage(t *testing.T) {
	tr := NewTranslator("de", nil)

	require.Equal(t, "", ErrorMessage(tr, "de", nil))
	require.Equal(t, "Die Anmeldung ist unvollständig: name manquant",
		ErrorMessage(tr, "de", fmt.Errorf("add: %w", fmt.Errorf("%w: name manquant", domain.ErrInvalidRecord))))
	require.Equal(t, "The local sign-up cache cannot be read.",
		ErrorMessage(tr, "en", fmt.Errorf("migrate: %w: %w", domain.ErrLegacyCacheCorrupt, errors.New("bad json"))))
	require.Equal(t, "Une erreur inattendue s'est produite.", ErrorMessage(tr, "fr", errors.New("boom")))
}
