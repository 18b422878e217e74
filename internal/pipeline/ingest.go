package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"movie-pipeline/internal/model"
	"movie-pipeline/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedSource is returned for source types other than csv and json.
var ErrUnsupportedSource = errors.New("unsupported source type")

// ------------------- Ingestion -------------------

// LoadSources loads every source concurrently and returns the records in
// source order.
func LoadSources(ctx context.Context, sources []model.Source, log logrus.FieldLogger) ([]model.RawRecord, error) {
	batches := make([][]model.RawRecord, len(sources))
	g, ctx := errgroup.WithContext(ctx)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			recs, err := LoadSource(ctx, src)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"source": src.Path, "type": src.Type, "records": len(recs)}).Info("Source loaded")
			batches[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.RawRecord
	for _, b := range batches {
		all = append(all, b...)
	}
	return all, nil
}

// LoadSource dispatches on the source type.
func LoadSource(ctx context.Context, src model.Source) ([]model.RawRecord, error) {
	switch model.SourceType(strings.ToLower(string(src.Type))) {
	case model.SourceCSV:
		return LoadCSV(ctx, src.Path)
	case model.SourceJSON:
		return LoadJSON(ctx, src.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, src.Type)
	}
}

// ------------------- CSV Ingestion -------------------

// LoadCSV reads a CSV file (or http URL) with a header row. Cells are typed
// with utils.ParseValue; short rows leave trailing fields absent.
func LoadCSV(ctx context.Context, pathOrURL string) ([]model.RawRecord, error) {
	reader, err := openSource(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header of %s: %w", pathOrURL, err)
	}
	for i, h := range headers {
		// strip a UTF-8 BOM and quotes left by LazyQuotes
		h = strings.TrimPrefix(h, "\ufeff")
		headers[i] = strings.TrimSpace(strings.ReplaceAll(h, `"`, ""))
	}

	var records []model.RawRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error in %s: %w", pathOrURL, err)
		}

		rec := make(model.GenericRecord, len(headers))
		for i, h := range headers {
			if i >= len(row) || h == "" {
				continue
			}
			rec[h] = utils.ParseValue(row[i])
		}
		records = append(records, model.RawRecord{Source: pathOrURL, Index: len(records), Fields: rec})
	}
}

// ------------------- JSON Ingestion -------------------

// LoadJSON reads a JSON array of objects, or a single object.
func LoadJSON(ctx context.Context, pathOrURL string) ([]model.RawRecord, error) {
	reader, err := openSource(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var raw interface{}
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from %s: %w", pathOrURL, err)
	}

	var items []interface{}
	switch data := raw.(type) {
	case []interface{}:
		items = data
	case map[string]interface{}:
		items = []interface{}{data}
	default:
		return nil, fmt.Errorf("unexpected JSON structure in %s", pathOrURL)
	}

	records := make([]model.RawRecord, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("JSON item %d in %s is not an object", i, pathOrURL)
		}
		records = append(records, model.RawRecord{Source: pathOrURL, Index: i, Fields: model.GenericRecord(m)})
	}
	return records, nil
}

func openSource(ctx context.Context, pathOrURL string) (io.ReadCloser, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to GET %s: %w", pathOrURL, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to GET %s: status %s", pathOrURL, resp.Status)
		}
		return resp.Body, nil
	}

	file, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", pathOrURL, err)
	}
	return file, nil
}
