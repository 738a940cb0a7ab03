package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var (
		output  = &bytes.Buffer{}
		rootCmd = newRootCommand()
	)

	rootCmd.SetOut(output)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return output.String(), err
}

func generate(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graph")

	_, err := execute(t, "generate", "--store", path, "--nodes", "60", "--relationships", "150", "--dense-threshold", "10")
	require.NoError(t, err)

	return path
}

func TestCheck_GeneratedStoreIsConsistent(t *testing.T) {
	var (
		path       = generate(t)
		reportFile = filepath.Join(t.TempDir(), "findings.report")
	)

	output, err := execute(t, "check", "--store", path, "--strict", "--output", "json", "--report-file", reportFile, "--workers", "4")
	require.NoError(t, err)

	var snapshot report.Snapshot
	require.NoError(t, json.Unmarshal([]byte(output), &snapshot))
	require.True(t, snapshot.Consistent)
	require.Zero(t, snapshot.Inconsistencies)
	require.Equal(t, reportFile, snapshot.ReportFile)
	require.FileExists(t, reportFile)
}

func TestCheck_StrictInconsistentStore(t *testing.T) {
	path := generate(t)

	backend, err := store.OpenBadger(store.BadgerOptions{Path: path})
	require.NoError(t, err)

	stores, err := store.Open(backend)
	require.NoError(t, err)

	stores.Counts.Set(store.NodeCountsKey(store.AnyToken), 1)
	require.NoError(t, stores.Flush())
	require.NoError(t, stores.Close())

	output, err := execute(t, "check", "--store", path, "--output", "yaml")
	require.NoError(t, err)

	var snapshot report.Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(output), &snapshot))
	require.False(t, snapshot.Consistent)
	require.Positive(t, snapshot.Inconsistencies)

	_, err = execute(t, "check", "--store", path, "--strict")
	require.ErrorIs(t, err, ErrInconsistent)
}

func TestCheck_RequiresStore(t *testing.T) {
	_, err := execute(t, "check")
	require.ErrorContains(t, err, "store.path is required")

	_, err = execute(t, "check", "--store", t.TempDir(), "--output", "xml")
	require.ErrorContains(t, err, "report.output")
}

func TestVersion(t *testing.T) {
	output, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, output, "recordcheck ")
}
