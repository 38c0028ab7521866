package pdfexport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatProperties(t *testing.T) {
	tests := []struct {
		compat      Compat
		archival    bool
		noAlpha     bool
		part        int
		conformance string
		displayName string
	}{
		{CompatDefault, false, false, 0, "", "default"},
		{CompatPdfA1B, true, true, 1, "B", "PDF/A-1b"},
		{CompatPdfA2B, true, false, 2, "B", "PDF/A-2b"},
		{CompatPdfA3B, true, false, 3, "B", "PDF/A-3b"},
		{CompatPdfA3U, true, false, 3, "U", "PDF/A-3u"},
	}
	for _, tt := range tests {
		t.Run(tt.displayName, func(t *testing.T) {
			assert.Equal(t, tt.archival, tt.compat.Archival())
			assert.Equal(t, tt.noAlpha, tt.compat.DisallowsTransparency())
			part, conformance := tt.compat.part()
			assert.Equal(t, tt.part, part)
			assert.Equal(t, tt.conformance, conformance)
			assert.Equal(t, tt.displayName, tt.compat.String())
		})
	}
}

func TestEncryptionEnabled(t *testing.T) {
	assert.False(t, Encryption{}.Enabled())
	assert.True(t, Encryption{OwnerPassword: "o"}.Enabled())
	assert.True(t, Encryption{UserPassword: "u"}.Enabled())
}

func TestParamsValidate(t *testing.T) {
	p := Params{}
	assert.NoError(t, p.validate())
	assert.Equal(t, "Helvetica", p.FontName)

	for _, font := range []string{"Courier", "Helvetica", "Times"} {
		p := Params{FontName: font}
		assert.NoError(t, p.validate())
	}

	p = Params{FontName: "Comic Sans"}
	assert.ErrorIs(t, p.validate(), ErrNoLayoutFont)
}
