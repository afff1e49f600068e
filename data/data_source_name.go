package data

import (
	"net/url"
	"regexp"
	"strings"
)

var keyValueDSN = regexp.MustCompile(
	`(?i)^(user=\S+|password=\S*|host=\S+|port=\d+|dbname=\S+|sslmode=\S+)(\s+\S+=\S*)*$`,
)

// A DSN for conveniently handling a URI connection string.
type DSN string

// Split separates a comma separated list of connection strings, dropping blanks.
func (d DSN) Split() []DSN {
	var dsns []DSN
	for _, part := range strings.Split(string(d), ",") {
		if part = strings.TrimSpace(part); part != "" {
			dsns = append(dsns, DSN(part))
		}
	}
	return dsns
}

// IsPostgres accepts postgres:// and postgresql:// urls as well as key=value connection strings.
func (d DSN) IsPostgres() bool {
	u, err := d.ToURI()
	if err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		return true
	}
	return keyValueDSN.MatchString(strings.TrimSpace(string(d)))
}

func (d DSN) ToURI() (*url.URL, error) {
	return url.Parse(string(d))
}

// WithDatabase points a url DSN at another database.
func (d DSN) WithDatabase(name string) (DSN, error) {
	u, err := d.ToURI()
	if err != nil {
		return "", err
	}

	u.Path = "/" + strings.TrimPrefix(name, "/")
	return DSN(u.String()), nil
}

// Database returns the database a url DSN points at.
func (d DSN) Database() string {
	u, err := d.ToURI()
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Redacted hides the password of a url DSN so it can be logged.
func (d DSN) Redacted() string {
	u, err := d.ToURI()
	if err != nil || u.Scheme == "" {
		return "<unparsed dsn>"
	}
	return u.Redacted()
}

func (d DSN) String() string {
	return string(d)
}
