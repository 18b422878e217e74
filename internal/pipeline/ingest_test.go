package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"movie-pipeline/internal/logger"
	"movie-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "\ufeffTitle, Year ,\"IMDB ID\",Runtime,Rating,Director\n" +
	"Alien,1979,tt0078748,117,8.5,Ridley Scott\n" +
	"Short,2001\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "movies.csv", sampleCSV)

	recs, err := LoadCSV(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, path, first.Source)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "Alien", first.Fields["Title"])
	assert.Equal(t, 1979, first.Fields["Year"])
	assert.Equal(t, "tt0078748", first.Fields["IMDB ID"])
	assert.Equal(t, 8.5, first.Fields["Rating"])

	// short rows leave trailing columns absent
	assert.Equal(t, 1, recs[1].Index)
	assert.NotContains(t, recs[1].Fields, "Runtime")
}

func TestLoadCSVEmptyFile(t *testing.T) {
	recs, err := LoadCSV(context.Background(), writeFile(t, "empty.csv", ""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLoadJSON(t *testing.T) {
	arr := writeFile(t, "movies.json", `[{"title":"A","year":2000},{"title":"B","cast":["x","y"]}]`)
	recs, err := LoadJSON(context.Background(), arr)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Fields["title"])
	assert.Equal(t, 2000.0, recs[0].Fields["year"])
	assert.Equal(t, 1, recs[1].Index)

	obj := writeFile(t, "one.json", `{"title":"Solo"}`)
	recs, err = LoadJSON(context.Background(), obj)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Solo", recs[0].Fields["title"])
}

func TestLoadJSONRejectsNonObjects(t *testing.T) {
	_, err := LoadJSON(context.Background(), writeFile(t, "bad.json", `[{"title":"A"}, 3]`))
	assert.Error(t, err)

	_, err = LoadJSON(context.Background(), writeFile(t, "scalar.json", `"nope"`))
	assert.Error(t, err)
}

func TestLoadSourcesKeepsSourceOrder(t *testing.T) {
	csvPath := writeFile(t, "a.csv", sampleCSV)
	jsonPath := writeFile(t, "b.json", `[{"title":"J"}]`)

	recs, err := LoadSources(context.Background(), []model.Source{
		model.SourceFromPath(jsonPath),
		model.SourceFromPath(csvPath),
	}, logger.Discard())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, jsonPath, recs[0].Source)
	assert.Equal(t, csvPath, recs[1].Source)
	assert.Equal(t, csvPath, recs[2].Source)
}

func TestLoadSourceUnsupported(t *testing.T) {
	_, err := LoadSource(context.Background(), model.Source{Type: "xml", Path: "x.xml"})
	assert.True(t, errors.Is(err, ErrUnsupportedSource))
}

func TestLoadSourcesPropagatesErrors(t *testing.T) {
	_, err := LoadSources(context.Background(), []model.Source{
		{Type: model.SourceCSV, Path: filepath.Join(t.TempDir(), "missing.csv")},
	}, logger.Discard())
	assert.Error(t, err)
}

func TestLoadCSVOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movies.csv" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, sampleCSV)
	}))
	defer srv.Close()

	recs, err := LoadCSV(context.Background(), srv.URL+"/movies.csv")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = LoadCSV(context.Background(), srv.URL+"/other.csv")
	assert.Error(t, err)
}
