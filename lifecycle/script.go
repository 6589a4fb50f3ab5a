// Package lifecycle renders the on-create script attached to the notebook
// instance. Values known when the resource graph is built (Declared) are kept
// apart from the deploy-time parameter (Params) so the archive location is
// never baked into the program.
package lifecycle

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/kballard/go-shellquote"
)

//go:embed on-create.sh.tmpl
var onCreateTemplate string

// archiveName is the file the archive is downloaded to inside the scratch dir.
const archiveName = "archive.tar.gz"

var (
	ErrMissingArchive       = errors.New("archive location is required")
	ErrArchiveScheme        = errors.New("archive location must be an s3://bucket/key URI")
	ErrNoSubnets            = errors.New("at least one subnet id is required")
	ErrMissingKey           = errors.New("kms key arn is required")
	ErrMissingSecurityGroup = errors.New("security group id is required")
	ErrInvalidValue         = errors.New("value must be a single line")
)

// Declared holds identifiers resolved while the resource graph is built.
type Declared struct {
	SecurityGroupID string
	SubnetIDs       []string
	KeyARN          string
}

// Params holds values supplied when the stack is deployed.
type Params struct {
	ArchiveLocation string
}

// Layout describes where the script reads and writes on the instance.
type Layout struct {
	WorkDir        string
	User           string
	MarkerPath     string
	PropertiesPath string
	ScratchDir     string
}

// DefaultLayout matches the SageMaker notebook instance filesystem.
func DefaultLayout() Layout {
	return Layout{
		WorkDir:        "/home/ec2-user/SageMaker",
		User:           "ec2-user",
		MarkerPath:     "/home/ec2-user/.ag-bootstrap-done",
		PropertiesPath: "/home/ec2-user/SageMaker/ag.properties",
		ScratchDir:     "/tmp/ag-bootstrap",
	}
}

var tmpl = template.Must(template.New("on-create").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"sh": shellWord}).
	Parse(onCreateTemplate))

func shellWord(s string) string {
	return shellquote.Join(s)
}

// Validate checks the inputs of Render.
func Validate(d Declared, p Params) error {
	if d.SecurityGroupID == "" {
		return ErrMissingSecurityGroup
	}
	if len(d.SubnetIDs) == 0 {
		return ErrNoSubnets
	}
	if d.KeyARN == "" {
		return ErrMissingKey
	}
	values := append([]string{d.SecurityGroupID, d.KeyARN, p.ArchiveLocation}, d.SubnetIDs...)
	for _, v := range values {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
	}
	for _, id := range d.SubnetIDs {
		if id == "" || strings.Contains(id, ",") {
			return fmt.Errorf("%w: subnet id %q", ErrInvalidValue, id)
		}
	}
	if _, _, err := ParseArchiveLocation(p.ArchiveLocation); err != nil {
		return err
	}
	return nil
}

// Render produces the on-create script. The output is a pure function of its
// inputs.
func Render(d Declared, p Params, l Layout) (string, error) {
	if err := Validate(d, p); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Declared    Declared
		Params      Params
		Layout      Layout
		ArchiveName string
	}{d, p, l, archiveName})
	if err != nil {
		return "", fmt.Errorf("render on-create script: %w", err)
	}
	return buf.String(), nil
}

// Encode returns the script in the base64 form SageMaker lifecycle
// configurations expect.
func Encode(script string) string {
	return base64.StdEncoding.EncodeToString([]byte(script))
}

// ParseArchiveLocation splits an s3://bucket/key URI.
func ParseArchiveLocation(location string) (bucket, key string, err error) {
	if location == "" {
		return "", "", ErrMissingArchive
	}
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrArchiveScheme, location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrArchiveScheme, location)
	}
	return bucket, key, nil
}
