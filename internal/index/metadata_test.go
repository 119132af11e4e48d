package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
)

func writeDescriptor(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorName), []byte(contents), 0o644))
}

func TestReadDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, `
contact: A Researcher
email: researcher@example.com
description: 1 degree spinup
keywords:
  - ocean
  - spinup
`)

	d := ReadDescriptor(dir)
	require.NotNil(t, d)
	assert.Equal(t, "A Researcher", d.Contact)
	assert.Equal(t, "researcher@example.com", d.Email)
	assert.Equal(t, "1 degree spinup", d.Description)
	assert.Equal(t, keywordList{"ocean", "spinup"}, d.Keywords)
}

func TestReadDescriptorScalarKeyword(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "keywords: ocean\n")

	d := ReadDescriptor(dir)
	require.NotNil(t, d)
	assert.Equal(t, keywordList{"ocean"}, d.Keywords)
}

func TestReadDescriptorMissing(t *testing.T) {
	assert.Nil(t, ReadDescriptor(t.TempDir()))
}

func TestReadDescriptorMalformed(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "contact: [unclosed\n")
	assert.Nil(t, ReadDescriptor(dir))
}

func TestDescriptorApply(t *testing.T) {
	e := &catalog.Experiment{Contact: "Old Contact", Notes: "kept"}

	d := &Descriptor{Contact: "New Contact", Email: "new@example.com"}
	d.Apply(e)

	assert.Equal(t, "New Contact", e.Contact)
	assert.Equal(t, "new@example.com", e.Email)
	// empty descriptor fields leave existing values alone
	assert.Equal(t, "kept", e.Notes)
}

func TestDescriptorApplyNil(t *testing.T) {
	e := &catalog.Experiment{Contact: "unchanged"}
	var d *Descriptor
	d.Apply(e)
	assert.Equal(t, "unchanged", e.Contact)
}
