package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-relay/internal/domain/entity"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLabelResolver_List(t *testing.T) {
	path := writeFile(t, "data.yaml", "path: ../datasets\nnames: [person, bicycle, car]\n")

	r, err := LoadLabelResolver(path)
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())

	name, err := r.Resolve(2)
	require.NoError(t, err)
	require.Equal(t, "car", name)
}

func TestLoadLabelResolver_Map(t *testing.T) {
	path := writeFile(t, "data.yaml", "names:\n  0: person\n  1: bicycle\n  2: car\n")

	r, err := LoadLabelResolver(path)
	require.NoError(t, err)

	name, err := r.Resolve(1)
	require.NoError(t, err)
	require.Equal(t, "bicycle", name)
}

func TestLoadLabelResolver_MapWithGap(t *testing.T) {
	path := writeFile(t, "data.yaml", "names:\n  0: person\n  2: car\n")

	_, err := LoadLabelResolver(path)
	require.Error(t, err)
}

func TestLabelResolver_UnknownIndex(t *testing.T) {
	r := NewLabelResolver([]string{"cat", "dog", "bird"})

	_, err := r.Resolve(999)
	require.ErrorIs(t, err, ErrUnknownClassIndex)

	_, err = r.Resolve(-1)
	var classErr *UnknownClassIndexError
	require.True(t, errors.As(err, &classErr))
	require.Equal(t, -1, classErr.Index)
}

func TestParseLabels_OrderAndConfidence(t *testing.T) {
	r := NewLabelResolver([]string{"cat", "dog", "bird"})
	input := "1 0.1 0.2 0.3 0.4\n\n0 0.5 0.5 0.2 0.2 0.87\n1 0.9 0.9 0.1 0.1\n"

	got, err := ParseLabels(strings.NewReader(input), r)
	require.NoError(t, err)
	require.Equal(t, []entity.Detection{
		{ClassName: "dog", CenterX: 0.1, CenterY: 0.2, Width: 0.3, Height: 0.4},
		{ClassName: "cat", CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.2},
		{ClassName: "dog", CenterX: 0.9, CenterY: 0.9, Width: 0.1, Height: 0.1},
	}, got)
}

func TestParseLabels_PartialGeometry(t *testing.T) {
	r := NewLabelResolver([]string{"cat"})

	_, err := ParseLabels(strings.NewReader("0 0.5 0.5\n"), r)
	require.ErrorIs(t, err, entity.ErrInvalidGeometry)

	_, err = ParseLabels(strings.NewReader("0 0.5 0.5 1.5 0.2\n"), r)
	require.ErrorIs(t, err, entity.ErrInvalidGeometry)
}

func TestExtractDetections_MissingFile(t *testing.T) {
	r := NewLabelResolver([]string{"cat"})

	got, err := ExtractDetections("", r)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = ExtractDetections(filepath.Join(t.TempDir(), "labels", "none.txt"), r)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestParseLabels_NonFiniteGeometry(t *testing.T) {
	resolver := NewLabelResolver([]string{"person"})

	for _, line := range []string{
		"0 NaN 0.5 0.2 0.4\n",
		"0 0.5 nan 0.2 0.4\n",
		"0 0.5 0.5 inf 0.4\n",
		"0 0.5 0.5 0.2 -Inf\n",
	} {
		_, err := ParseLabels(strings.NewReader(line), resolver)
		require.ErrorIs(t, err, entity.ErrInvalidGeometry, line)
	}
}
