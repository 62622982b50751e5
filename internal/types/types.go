// Package types provides common type definitions for the price ETL system.
package types

// SourceID identifies a registered data source
type SourceID string

const (
	// SourceCoinGecko represents the CoinGecko markets API
	SourceCoinGecko SourceID = "coingecko"
	// SourceCoinPaprika represents the CoinPaprika tickers API
	SourceCoinPaprika SourceID = "coinpaprika"
	// SourceCSV represents a local CSV file source
	SourceCSV SourceID = "csv"
)

// RunStatus represents the lifecycle state of an ingestion run
type RunStatus string

const (
	// RunStatusRunning represents a run that has started but not finished
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess represents a run where every fetched record was written
	RunStatusSuccess RunStatus = "success"
	// RunStatusPartial represents a run where some records were rejected during normalization
	RunStatusPartial RunStatus = "partial"
	// RunStatusFailed represents a run aborted by a fetch, storage, or unexpected error
	RunStatusFailed RunStatus = "failed"
)

// SourceHealth represents the derived health of a source, based on its most recent run
type SourceHealth string

const (
	// HealthOK means the latest run finished as success
	HealthOK SourceHealth = "ok"
	// HealthDegraded means the latest run finished as partial
	HealthDegraded SourceHealth = "degraded"
	// HealthFailing means the latest run finished as failed
	HealthFailing SourceHealth = "failing"
	// HealthUnknown means the source has never run
	HealthUnknown SourceHealth = "unknown"
)

// HealthForStatus maps a final run status to a source health value
func HealthForStatus(status RunStatus) SourceHealth {
	switch status {
	case RunStatusSuccess:
		return HealthOK
	case RunStatusPartial:
		return HealthDegraded
	case RunStatusFailed:
		return HealthFailing
	default:
		return HealthUnknown
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
