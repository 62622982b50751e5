package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/errors"
)

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing test csv: %v", err)
	}
	return path
}

const testCSV = `id,symbol,name,price,timestamp
bitcoin,BTC,Bitcoin,42000,2024-01-15T00:00:00Z
ethereum,ETH,Ethereum,2200,2024-01-15T00:00:00Z
solana,SOL,Solana,95.5,2024-01-15T00:00:00Z
`

func TestCSVFetch_FirstBatch(t *testing.T) {
	path := writeTestCSV(t, testCSV)
	src := NewCSVSource(&config.CSVConfig{Path: path, BatchSize: 2})

	batch, err := src.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(batch.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(batch.Records))
	}
	if batch.Records[0].CoinID != "bitcoin" {
		t.Errorf("Records[0].CoinID = %s, want bitcoin", batch.Records[0].CoinID)
	}
	if batch.NextCursor != "2" {
		t.Errorf("NextCursor = %q, want \"2\"", batch.NextCursor)
	}

	var fields map[string]string
	if err := json.Unmarshal(batch.Records[0].Payload, &fields); err != nil {
		t.Fatalf("payload is not a JSON object: %v", err)
	}
	if fields["price"] != "42000" {
		t.Errorf("payload price = %s, want 42000", fields["price"])
	}
}

func TestCSVFetch_ResumeFromCursor(t *testing.T) {
	path := writeTestCSV(t, testCSV)
	src := NewCSVSource(&config.CSVConfig{Path: path, BatchSize: 2})

	batch, err := src.Fetch(context.Background(), "2")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(batch.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(batch.Records))
	}
	if batch.Records[0].CoinID != "solana" {
		t.Errorf("Records[0].CoinID = %s, want solana", batch.Records[0].CoinID)
	}
	if batch.NextCursor != "3" {
		t.Errorf("NextCursor = %q, want \"3\"", batch.NextCursor)
	}
}

func TestCSVFetch_ExhaustedFile(t *testing.T) {
	path := writeTestCSV(t, testCSV)
	src := NewCSVSource(&config.CSVConfig{Path: path, BatchSize: 2})

	batch, err := src.Fetch(context.Background(), "3")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(batch.Records) != 0 {
		t.Errorf("len(Records) = %d, want 0 past end of file", len(batch.Records))
	}
	if batch.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty after exhaustion", batch.NextCursor)
	}
}

func TestCSVFetch_MissingFile(t *testing.T) {
	src := NewCSVSource(&config.CSVConfig{Path: "/nonexistent/prices.csv", BatchSize: 10})

	_, err := src.Fetch(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.CategoryOf(err) != errors.CategoryMalformedResponse {
		t.Errorf("error category = %v, want malformed_response", errors.CategoryOf(err))
	}
}

func TestCSVFetch_CoinIDFallbacks(t *testing.T) {
	path := writeTestCSV(t, "symbol,price\nBTC,42000\n")
	src := NewCSVSource(&config.CSVConfig{Path: path, BatchSize: 10})

	batch, err := src.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(batch.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(batch.Records))
	}
	if batch.Records[0].CoinID != "BTC" {
		t.Errorf("CoinID = %s, want fallback to symbol column", batch.Records[0].CoinID)
	}
}

func TestCSVFetch_HeaderOnlyFile(t *testing.T) {
	path := writeTestCSV(t, "id,symbol,price\n")
	src := NewCSVSource(&config.CSVConfig{Path: path, BatchSize: 10})

	batch, err := src.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(batch.Records) != 0 || batch.NextCursor != "" {
		t.Errorf("expected empty batch with no cursor, got %d records cursor %q", len(batch.Records), batch.NextCursor)
	}
}
