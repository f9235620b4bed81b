package sequencer

import "time"

// versionLayout renders a timestamp as YYYY.MM.DD.HHMM. Two builds in
// the same minute share a token, which is acceptable for its purpose of
// tying artifacts back to a build window.
const versionLayout = "2006.01.02.1504"

// VersionToken formats t as the version applied to builds and packages
// when no explicit version is given.
func VersionToken(t time.Time) string {
	return t.Format(versionLayout)
}
