package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/types"
)

// CSVSource reads price rows from a local CSV file. The cursor is the
// number of data rows already processed, so re-triggering resumes where
// the previous run left off instead of re-reading the whole file.
type CSVSource struct {
	path      string
	batchSize int
}

// NewCSVSource creates a file-based source adapter
func NewCSVSource(cfg *config.CSVConfig) *CSVSource {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	return &CSVSource{
		path:      cfg.Path,
		batchSize: batchSize,
	}
}

// ID returns the source identifier
func (s *CSVSource) ID() types.SourceID {
	return types.SourceCSV
}

// Fetch reads the next batch of rows after the cursor offset. Rows are
// converted to JSON objects keyed by the header so the normalizer sees
// the same opaque payload shape as the remote sources.
func (s *CSVSource) Fetch(ctx context.Context, cursor string) (*Batch, error) {
	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("invalid row-offset cursor %q", cursor))
		}
		offset = parsed
	}

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("csv file not found: %s", s.path))
		}
		return nil, errors.NewTransientFetchError(s.ID(), err)
	}
	defer func() {
		_ = file.Close()
	}()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Batch{}, nil
	}
	if err != nil {
		return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("reading csv header: %w", err))
	}

	// Skip rows covered by the checkpoint
	for skipped := 0; skipped < offset; skipped++ {
		if _, err := reader.Read(); err == io.EOF {
			return &Batch{}, nil
		} else if err != nil {
			return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("skipping to row %d: %w", offset, err))
		}

		if err := ctx.Err(); err != nil {
			return nil, errors.NewTransientFetchError(s.ID(), err)
		}
	}

	records := make([]Raw, 0, s.batchSize)
	consumed := 0

	for consumed < s.batchSize {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("reading csv row %d: %w", offset+consumed+1, err))
		}

		raw, err := rowToRaw(header, row)
		if err != nil {
			return nil, errors.NewMalformedResponseError(s.ID(), err)
		}

		records = append(records, raw)
		consumed++
	}

	// The cursor advances past every consumed row; once the file is
	// exhausted a later run gets an empty batch and leaves the
	// checkpoint unchanged.
	batch := &Batch{Records: records}
	if consumed > 0 {
		batch.NextCursor = strconv.Itoa(offset + consumed)
	}

	return batch, nil
}

// rowToRaw converts a CSV row into a JSON payload keyed by the header
func rowToRaw(header, row []string) (Raw, error) {
	fields := make(map[string]string, len(header))
	for i, key := range header {
		if i < len(row) {
			fields[key] = row[i]
		}
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return Raw{}, fmt.Errorf("encoding csv row: %w", err)
	}

	coinID := fields["id"]
	if coinID == "" {
		coinID = fields["coin_id"]
	}
	if coinID == "" {
		coinID = fields["symbol"]
	}

	return Raw{CoinID: coinID, Payload: payload}, nil
}
