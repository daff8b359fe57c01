package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscss/css-jobs-sub000/internal/domains"
)

const dupDataset = `[
  {"domain": "uni.edu", "name": "First Uni", "country": "US"},
  {"domain": "other.ac.uk", "name": "Other", "country": "UK"},
  {"domain": "UNI.edu", "name": "Second Uni", "country": "US"}
]`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "institutions.json")
	require.NoError(t, os.WriteFile(path, []byte(dupDataset), 0o600))
	return path
}

func TestRun_WritesDedupedJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-in", writeDataset(t)}, &stdout, &stderr)
	require.NoError(t, err)

	records, err := domains.ReadJSON(&stdout)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "First Uni", records[0].Name)

	assert.Contains(t, stderr.String(), "uni.edu")
	assert.Contains(t, stderr.String(), "Second Uni")
	assert.Contains(t, stderr.String(), "1 duplicate domains removed")
}

func TestRun_WritesCSVFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clean.csv")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-in", writeDataset(t), "-out", out}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())

	records, err := domains.LoadFile(out)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domains.Institution{Domain: "other.ac.uk", Name: "Other", Country: "UK"}, records[1])
}

func TestRun_CheckMode(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-check", "-in", writeDataset(t)}, &stdout, &stderr)
	assert.ErrorContains(t, err, "1 duplicate domains")
	assert.Empty(t, stdout.String())

	stderr.Reset()
	err = run(context.Background(), []string{"-check"}, &stdout, &stderr)
	require.NoError(t, err, "embedded dataset is clean")
	assert.Contains(t, stderr.String(), "no duplicate domains")
}

func TestRun_UnknownFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-in", writeDataset(t), "-format", "xml"}, &stdout, &stderr)
	assert.Error(t, err)
}

type closeFailWriter struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (w *closeFailWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestWriteAndClose_ReportsCloseError(t *testing.T) {
	diskFull := errors.New("no space left on device")
	w := &closeFailWriter{closeErr: diskFull}

	err := writeAndClose(w, func(out io.Writer) error {
		return writeJSON(out, []domains.Institution{{Domain: "uni.edu"}})
	})
	assert.ErrorIs(t, err, diskFull)
	assert.True(t, w.closed)
	assert.Contains(t, w.String(), "uni.edu")
}

func TestWriteAndClose_WriteErrorStillCloses(t *testing.T) {
	boom := errors.New("boom")
	w := &closeFailWriter{}

	err := writeAndClose(w, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, w.closed)
}

func TestRun_UnknownFormatCreatesNoFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clean.xml")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-in", writeDataset(t), "-out", out, "-format", "xml"}, &stdout, &stderr)
	require.Error(t, err)
	assert.NoFileExists(t, out)
}
