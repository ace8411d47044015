package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// WriteZip writes feed to a GTFS archive at path, one file per table with a
// header row. Tables without rows are still written with their header.
func WriteZip(path string, feed *Feed) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, table := range Tables {
		if err := writeTable(zw, table, feed.Rows(table)); err != nil {
			zw.Close()
			f.Close()
			os.Remove(tmp)
			return err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

func writeTable(zw *zip.Writer, table Table, rows [][]string) error {
	w, err := zw.Create(table.File)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", table.File, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write %s header: %w", table.File, err)
	}
	for _, row := range rows {
		if len(row) != len(table.Columns) {
			return fmt.Errorf("row in %s has %d fields, want %d", table.File, len(row), len(table.Columns))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write %s: %w", table.File, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadZip reads the known tables of a GTFS archive. Columns are mapped by
// header name into canonical order; unknown columns are ignored and missing
// ones are empty. Unknown files are skipped.
func ReadZip(path string) (*Feed, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[f.Name] = f
	}

	feed := NewFeed()
	for _, table := range Tables {
		f, ok := files[table.File]
		if !ok {
			continue
		}
		if err := readTable(f, table, feed); err != nil {
			log.Printf("Warning: failed to parse %s: %v", table.File, err)
		}
	}

	return feed, nil
}

func readTable(f *zip.File, table Table, feed *Feed) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return err
	}

	idx := makeIndex(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		row := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			row[i] = getField(record, idx, col)
		}
		feed.Add(table, row)
	}

	return nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
