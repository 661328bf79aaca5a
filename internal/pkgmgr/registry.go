// Package pkgmgr maps base images to their distribution's package manager:
// the pin pattern to look for, the separator pins use, and the command that
// asks the image for the latest available versions.
package pkgmgr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/distribution/reference"
)

// ErrUnknownBaseImage is returned when a base image matches no known
// distribution family. Callers may skip the stage and keep processing
// others.
var ErrUnknownBaseImage = errors.New("unknown base image")

// Manager describes one package-manager family.
type Manager struct {
	// Name is the package manager binary (dnf, apt-get, apk).
	Name string
	// Separator joins a package name to its version in a pin and in the
	// query output (e.g. "=" for bash=5.2).
	Separator string

	pinPattern    *regexp.Regexp
	queryTemplate string // fmt template; %s receives the package list
}

// PinPattern returns the compiled pattern matching one pinned package
// token. Capture group 1 is the package name.
func (m Manager) PinPattern() *regexp.Regexp {
	return m.pinPattern
}

// QueryCommand builds the shell command that reports the latest available
// version for each package, one "name<sep>version" line per package.
func (m Manager) QueryCommand(packages []string) string {
	return fmt.Sprintf(m.queryTemplate, strings.Join(packages, " "))
}

// family binds a Manager to the base-image keywords that select it.
type family struct {
	keywords []string
	manager  Manager
}

// pinEquals matches name=version pins; group 1 is the package name.
var pinEquals = regexp.MustCompile(`([a-zA-Z0-9_.+-]+)=\S+`)

// registry holds one entry per supported distribution family. Adding a
// family means adding an entry, not branching logic.
var registry = []family{
	{
		keywords: []string{"fedora", "centos", "rhel"},
		manager: Manager{
			Name:          "dnf",
			Separator:     "=",
			pinPattern:    pinEquals,
			queryTemplate: `dnf repoquery --quiet --latest-limit=1 --queryformat='%%{name}=%%{version}\n' %s`,
		},
	},
	{
		keywords: []string{"ubuntu", "debian"},
		manager: Manager{
			Name:          "apt-get",
			Separator:     "=",
			pinPattern:    pinEquals,
			queryTemplate: `apt-get update -qq >/dev/null 2>&1 && apt-cache --no-all-versions show %s | awk '/^Package:/{p=$2} /^Version:/{print p"="$2}'`,
		},
	},
	{
		keywords: []string{"alpine"},
		manager: Manager{
			Name:          "apk",
			Separator:     "=",
			pinPattern:    pinEquals,
			queryTemplate: `apk update -q >/dev/null 2>&1 && apk search -x %s | sed -E 's/^(.+)-([^-]+-r[0-9]+)$/\1=\2/'`,
		},
	},
}

// Detect resolves the package manager for a base image reference. The
// reference is normalized (docker.io shorthand expanded) when it parses;
// references that do not parse, such as ones carrying a --platform flag,
// fall back to a match over the raw string.
func Detect(baseImage string) (Manager, error) {
	subject := strings.ToLower(baseImage)
	if named, err := reference.ParseNormalizedNamed(subject); err == nil {
		subject = reference.Path(named)
	}

	for _, f := range registry {
		for _, keyword := range f.keywords {
			if strings.Contains(subject, keyword) {
				return f.manager, nil
			}
		}
	}
	return Manager{}, fmt.Errorf("%w: %s", ErrUnknownBaseImage, baseImage)
}
