package metadata

import (
	"bytes"
	"text/template"

	"github.com/gantry-build/gantry/pkg/errs"
)

// sourceTemplate is the replacement body written over every discovered
// metadata file during a staged build. Attribute values come from the
// substitution map; the delay-sign attribute is fixed because assembly
// signing happens outside the build pipeline.
const sourceTemplate = `using System;
using System.Reflection;
using System.Runtime.CompilerServices;
using System.Runtime.InteropServices;

[assembly: CLSCompliantAttribute({{.ClsCompliant}})]
[assembly: ComVisibleAttribute({{.ComVisible}})]
[assembly: AssemblyTitleAttribute("{{.Title}}")]
[assembly: AssemblyDescriptionAttribute("{{.Description}}")]
[assembly: AssemblyCompanyAttribute("{{.Company}}")]
[assembly: AssemblyProductAttribute("{{.Product}}")]
[assembly: AssemblyCopyrightAttribute("{{.Copyright}}")]
[assembly: AssemblyVersionAttribute("{{.Version}}")]
[assembly: AssemblyInformationalVersionAttribute("{{.InformationalVersion}}")]
[assembly: AssemblyFileVersionAttribute("{{.FileVersion}}")]
[assembly: AssemblyDelaySignAttribute(false)]
`

// requiredTokens lists every substitution key the template consumes.
var requiredTokens = []string{
	"ClsCompliant",
	"ComVisible",
	"Title",
	"Description",
	"Company",
	"Product",
	"Copyright",
	"Version",
	"InformationalVersion",
	"FileVersion",
}

var sourceTmpl = template.Must(template.New("metadata").Option("missingkey=error").Parse(sourceTemplate))

// Render produces the generated metadata source for one build. Rendering
// never guesses: if the map is missing any required token the whole build
// is refused rather than writing a half-filled file into the tree.
func Render(tokens map[string]string) ([]byte, error) {
	for _, key := range requiredTokens {
		if _, ok := tokens[key]; !ok {
			return nil, errs.Newf(errs.ErrMissingDescriptor, "metadata.render", "descriptor token %q missing", key).
				WithAdvice("pass a complete descriptor, or leave fields unset so configuration defaults apply")
		}
	}
	var buf bytes.Buffer
	if err := sourceTmpl.Execute(&buf, tokens); err != nil {
		return nil, errs.Wrap(err, errs.ErrMissingDescriptor, "metadata.render")
	}
	return buf.Bytes(), nil
}
