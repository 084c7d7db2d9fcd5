package device

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// DefaultSFTPPort is the port used when an sftp:// location names none.
const DefaultSFTPPort = 22

const (
	SchemeMount = "mount"
	SchemeSFTP  = "sftp"
)

// Location identifies a device on the command line.
type Location struct {
	Scheme string
	Host   string
	User   string
	Path   string // mount point, or remote root for SFTP
	Port   int
}

// IsSFTP reports whether the location names an SFTP device.
func (l Location) IsSFTP() bool { return l.Scheme == SchemeSFTP }

func (l Location) String() string {
	if !l.IsSFTP() {
		return l.Path
	}
	host := l.Host
	if l.Port != 0 && l.Port != DefaultSFTPPort {
		host = fmt.Sprintf("%s:%d", l.Host, l.Port)
	}
	if l.User != "" {
		host = l.User + "@" + host
	}
	return fmt.Sprintf("sftp://%s%s", host, l.Path)
}

// ParseLocation parses a device argument.
//
// Supported formats:
//   - /run/user/1000/gvfs/mtp:host=...   → mounted device (plain path)
//   - mount:///media/phone               → mounted device
//   - sftp://host                        → SFTP device, remote root "/"
//   - sftp://user@host:2222/sdcard       → SFTP device rooted at /sdcard
//
// gvfs mount points contain colons, so anything without a recognized
// scheme prefix is a mount path.
func ParseLocation(arg string) (Location, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Location{}, errors.New("empty device location")
	}

	switch {
	case strings.HasPrefix(arg, SchemeSFTP+"://"):
		return parseSFTP(arg)
	case strings.HasPrefix(arg, SchemeMount+"://"):
		p := strings.TrimPrefix(arg, SchemeMount+"://")
		if p == "" {
			return Location{}, errors.Errorf("mount location %q has no path", arg)
		}
		return Location{Scheme: SchemeMount, Path: p}, nil
	default:
		return Location{Scheme: SchemeMount, Path: arg}, nil
	}
}

func parseSFTP(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, errors.Errorf("parse %q: %w", raw, err)
	}
	host := u.Hostname()
	if host == "" {
		return Location{}, errors.Errorf("sftp location %q has no host", raw)
	}

	loc := Location{Scheme: SchemeSFTP, Host: host, Path: u.Path}
	if loc.Path == "" {
		loc.Path = "/"
	}
	if p := u.Port(); p != "" {
		loc.Port, err = strconv.Atoi(p)
		if err != nil {
			return Location{}, errors.Errorf("sftp location %q: bad port: %w", raw, err)
		}
	}
	if u.User != nil {
		loc.User = u.User.Username()
	}
	return loc, nil
}
