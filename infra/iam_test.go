package infra

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotebookPolicyKeyStatement(t *testing.T) {
	arn := "arn:aws:kms:us-west-2:123456789012:key/1234abcd"
	doc := notebookPolicy(arn)

	var keyStatements []Statement
	for _, s := range doc.Statement {
		for _, a := range s.Action {
			if strings.HasPrefix(a, "kms:") {
				keyStatements = append(keyStatements, s)
				break
			}
		}
	}
	require.Len(t, keyStatements, 1)

	st := keyStatements[0]
	assert.Equal(t, "Allow", st.Effect)
	assert.Len(t, st.Action, 9)
	assert.ElementsMatch(t, keyActions, st.Action)
	assert.Equal(t, []string{arn}, st.Resource)
}

func TestNotebookPolicyStorageStatement(t *testing.T) {
	doc := notebookPolicy("arn:aws:kms:us-west-2:123456789012:key/1234abcd")

	for _, s := range doc.Statement {
		if s.Sid != "ObjectStorage" {
			continue
		}
		for _, a := range s.Action {
			assert.True(t, strings.HasPrefix(a, "s3:"), a)
		}
		for _, r := range s.Resource {
			assert.True(t, strings.HasPrefix(r, "arn:aws:s3:::"), r)
		}
		return
	}
	t.Fatal("no object storage statement")
}

func TestNotebookPolicyDoesNotShareActions(t *testing.T) {
	doc := notebookPolicy("arn:aws:kms:us-west-2:123456789012:key/1234abcd")
	doc.Statement[0].Action[0] = "kms:*"
	assert.Equal(t, "kms:Encrypt", keyActions[0])
}

func TestAssumeRolePolicyJSON(t *testing.T) {
	s, err := assumeRolePolicy().JSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	assert.Equal(t, "2012-10-17", doc["Version"])

	statements := doc["Statement"].([]any)
	require.Len(t, statements, 1)
	st := statements[0].(map[string]any)
	assert.Equal(t, map[string]any{"Service": "sagemaker.amazonaws.com"}, st["Principal"])
	assert.Equal(t, []any{"sts:AssumeRole"}, st["Action"])
	assert.NotContains(t, st, "Resource")
}
