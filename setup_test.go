package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withStdin feeds prompts from input as if stdin were a pipe.
func withStdin(t *testing.T, input string) {
	t.Helper()
	savedReader, savedTerm := stdin, stdinIsTerminal
	stdin = bufio.NewReader(strings.NewReader(input))
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdin, stdinIsTerminal = savedReader, savedTerm })
}

func TestPromptArchive(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		current string
		want    string
		wantErr error
	}{
		{name: "entered", input: "s3://ag-bootstrap/bundle.tar.gz\n", want: "s3://ag-bootstrap/bundle.tar.gz"},
		{name: "retry after invalid", input: "ftp://nope\ns3://ag-bootstrap/b.tgz\n", want: "s3://ag-bootstrap/b.tgz"},
		{name: "keeps current", input: "\n", current: "s3://ag-bootstrap/old.tgz", want: "s3://ag-bootstrap/old.tgz"},
		{name: "current at eof", input: "", current: "s3://ag-bootstrap/old.tgz", want: "s3://ag-bootstrap/old.tgz"},
		{name: "eof", input: "", wantErr: errInputClosed},
		{name: "eof after invalid", input: "bucket/key\n", wantErr: errInputClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withStdin(t, tt.input)
			got, err := promptArchive(tt.current)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptArchiveGivesUp(t *testing.T) {
	withStdin(t, "a\nb\nc\ns3://ag-bootstrap/late.tgz\n")
	_, err := promptArchive("")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errInputClosed)
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestInteractiveSetupStopsAtEOF(t *testing.T) {
	withConfig(t, Config{})
	withStdin(t, "")

	assert.ErrorIs(t, runInteractiveSetup(true), errInputClosed)
}

func TestInteractiveSetupPiped(t *testing.T) {
	withConfig(t, Config{})
	// Defaults for everything up to the archive, then an invalid choice for
	// the key retention list.
	withStdin(t, strings.Repeat("\n", 8)+"s3://ag-bootstrap/bundle.tar.gz\n\n\n9\n")

	require.NoError(t, runInteractiveSetup(true))
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "AgVpcStack-west", cfg.StackName)
	assert.Equal(t, "ml.t3.medium", cfg.InstanceType)
	assert.Equal(t, 3, cfg.MaxAZs)
	assert.Equal(t, "s3://ag-bootstrap/bundle.tar.gz", cfg.ArchiveLocation)
	assert.False(t, cfg.RetainKey)
}
