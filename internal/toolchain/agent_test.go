package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteCommand(t *testing.T) {
	tests := []struct {
		name string
		inv  Invocation
		want string
	}{
		{
			name: "plain args",
			inv: Invocation{
				Tool: "msbuild",
				Args: []string{"/p:Configuration=release", "/t:Clean;Rebuild"},
			},
			want: `msbuild /p:Configuration=release /t:Clean;Rebuild`,
		},
		{
			name: "quotes tool and args with spaces",
			inv: Invocation{
				Tool: `C:\Program Files\msbuild.exe`,
				Args: []string{`/p:OutputPath=C:\Build Output`},
			},
			want: `"C:\Program Files\msbuild.exe" "/p:OutputPath=C:\Build Output"`,
		},
		{
			name: "prefixes working directory",
			inv: Invocation{
				Tool: "nuget",
				Args: []string{"spec", "-Force", "My.Web"},
				Dir:  "/srv/package source",
			},
			want: `cd "/srv/package source" && nuget spec -Force My.Web`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remoteCommand(tt.inv))
		})
	}
}
