package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/pkg/errs"
)

func TestRenderFullDescriptor(t *testing.T) {
	desc := v1.Descriptor{
		Title:       "Billing Service",
		Description: "Handles invoicing",
		Company:     "Acme",
		Product:     "Acme Billing",
		Copyright:   "Copyright Acme 2026",
	}.WithDefaults("release")

	out, err := Render(desc.Tokens())
	require.NoError(t, err)

	content := string(out)
	assert.True(t, strings.HasPrefix(content, "using System;\n"))
	assert.Contains(t, content, "using System.Runtime.InteropServices;\n\n[assembly:")
	assert.Contains(t, content, `[assembly: CLSCompliantAttribute(false)]`)
	assert.Contains(t, content, `[assembly: ComVisibleAttribute(false)]`)
	assert.Contains(t, content, `[assembly: AssemblyTitleAttribute("Billing Service")]`)
	assert.Contains(t, content, `[assembly: AssemblyVersionAttribute("1.0")]`)
	assert.Contains(t, content, `[assembly: AssemblyInformationalVersionAttribute("1.0 (release)")]`)
	assert.Contains(t, content, `[assembly: AssemblyFileVersionAttribute("1.0")]`)
	assert.True(t, strings.HasSuffix(content, "[assembly: AssemblyDelaySignAttribute(false)]\n"))
}

func TestRenderExactOutput(t *testing.T) {
	tokens := map[string]string{
		"ClsCompliant":         "true",
		"ComVisible":           "true",
		"Title":                "App",
		"Description":          "",
		"Company":              "",
		"Product":              "",
		"Copyright":            "",
		"Version":              "2.1",
		"InformationalVersion": "2.1 (debug)",
		"FileVersion":          "2.1",
	}

	out, err := Render(tokens)
	require.NoError(t, err)

	want := `using System;
using System.Reflection;
using System.Runtime.CompilerServices;
using System.Runtime.InteropServices;

[assembly: CLSCompliantAttribute(true)]
[assembly: ComVisibleAttribute(true)]
[assembly: AssemblyTitleAttribute("App")]
[assembly: AssemblyDescriptionAttribute("")]
[assembly: AssemblyCompanyAttribute("")]
[assembly: AssemblyProductAttribute("")]
[assembly: AssemblyCopyrightAttribute("")]
[assembly: AssemblyVersionAttribute("2.1")]
[assembly: AssemblyInformationalVersionAttribute("2.1 (debug)")]
[assembly: AssemblyFileVersionAttribute("2.1")]
[assembly: AssemblyDelaySignAttribute(false)]
`
	assert.Equal(t, want, string(out))
}

func TestRenderMissingToken(t *testing.T) {
	tokens := v1.Descriptor{}.WithDefaults("release").Tokens()
	delete(tokens, "Copyright")

	_, err := Render(tokens)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrMissingDescriptor))
	assert.Contains(t, err.Error(), "Copyright")
}

func TestRenderRejectsEveryMissingToken(t *testing.T) {
	for _, key := range requiredTokens {
		t.Run(key, func(t *testing.T) {
			tokens := v1.Descriptor{}.WithDefaults("debug").Tokens()
			delete(tokens, key)

			_, err := Render(tokens)
			assert.True(t, errs.IsCode(err, errs.ErrMissingDescriptor))
		})
	}
}
