package batch

import (
	"errors"
	"strconv"
	"time"
)

// Status is the lifecycle state of a conversion batch.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusWaitingMapping Status = "WAITING_MAPPING"
	StatusCompleted      Status = "COMPLETED"
	StatusError          Status = "ERROR"
)

var (
	// ErrDuplicateProtocol is returned when a protocol number is reused.
	ErrDuplicateProtocol = errors.New("protocol number already exists")
	// ErrBatchProcessing is returned when a PENDING batch is deleted.
	ErrBatchProcessing = errors.New("batch is still processing")
)

// Batch is one uploaded spreadsheet and its conversion outcome.
type Batch struct {
	ID             int64
	Protocol       string
	CompanyID      string
	Period         string
	HeadOfficeCode int
	BranchCode     *int
	InitialLot     *int
	Email          string
	LayoutName     string
	Status         Status
	ErrorMessage   string
	RawFileB64     string
	ResultB64      string
	DroppedRows    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BranchCodeString renders the branch code for the ledger lines; an
// absent branch renders empty, matching the output contract.
func (b Batch) BranchCodeString() string {
	if b.BranchCode == nil {
		return ""
	}
	return strconv.Itoa(*b.BranchCode)
}

// StagingEntry is a row parked for manual account mapping.
type StagingEntry struct {
	ID               int64
	BatchID          int64
	EntryDate        string
	Amount           float64
	RawDebitAccount  string
	RawCreditAccount string
	History          string
	HistoryCode      string
}

// Summary is the status-poll view of a batch.
type Summary struct {
	ID           int64
	Protocol     string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
}
