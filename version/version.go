package version

import (
	"fmt"
	"strings"
	"sync"
)

// validCharacters is a list of characters valid in the appBuild string
const validCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appBuild is set at build time with
// '-ldflags "-X github.com/anchorchain/anchord/version.appBuild=foo"'.
// Values with characters outside validCharacters are ignored.
var appBuild string

var (
	version     string
	versionOnce sync.Once
)

// Version returns the application version in semver form, with the build
// metadata appended when it's valid.
func Version() string {
	versionOnce.Do(func() {
		version = fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
		if isValidBuild(appBuild) {
			version = fmt.Sprintf("%s+%s", version, appBuild)
		}
	})
	return version
}

func isValidBuild(build string) bool {
	if build == "" {
		return false
	}
	for _, r := range build {
		if !strings.ContainsRune(validCharacters, r) {
			return false
		}
	}
	return true
}
