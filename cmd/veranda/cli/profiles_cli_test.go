package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veranda-erp/veranda-erp/internal/posimport"
)

func writeProfileFile(t *testing.T, profile posimport.VendorProfile) string {
	t.Helper()
	data, err := json.Marshal(profile)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestProfilesValidateCommandValid(t *testing.T) {
	profile := posimport.BuiltinProfiles()[0]
	path := writeProfileFile(t, profile)

	var stdout, stderr bytes.Buffer
	code := NewProfilesCLI().ValidateCommand(ProfileValidateOptions{
		Path:       path,
		JSONOutput: true,
		Stdout:     &stdout,
		Stderr:     &stderr,
	})
	require.Equal(t, 0, code, stderr.String())

	var summary ProfileValidateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Equal(t, profile.Vendor, summary.Vendor)
	require.Empty(t, summary.Problems)
	require.Contains(t, summary.Mapped, posimport.FieldReceiptNo)
}

func TestProfilesValidateCommandMissingColumns(t *testing.T) {
	profile := posimport.BuiltinProfiles()[0]
	delete(profile.Columns, posimport.FieldQuantity)
	path := writeProfileFile(t, profile)

	var stdout, stderr bytes.Buffer
	code := NewProfilesCLI().ValidateCommand(ProfileValidateOptions{
		Path:       path,
		JSONOutput: true,
		Stdout:     &stdout,
		Stderr:     &stderr,
	})
	require.Equal(t, 10, code)

	var summary ProfileValidateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Problems, 1)
	require.Contains(t, summary.Problems[0], posimport.FieldQuantity)
}

func TestProfilesValidateCommandMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := NewProfilesCLI().ValidateCommand(ProfileValidateOptions{
		Path:   filepath.Join(t.TempDir(), "absent.json"),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "profiles validate")
}
