package progress

// RowID identifies a single display row created by a Renderer.
type RowID int64

// TotalUnknown is passed as a row total when the expected amount
// of work is not known yet.
const TotalUnknown WorkAmount = -1

// Renderer receives display notifications from a Progress.
//
// All methods are called while the owning Progress holds its lock,
// so implementations must return quickly and must never call back
// into that Progress.
type Renderer interface {
	// AddRow creates a new display row. A total of TotalUnknown
	// means the row has no known end yet.
	AddRow(label string, total WorkAmount) RowID

	// UpdateRow reports the current completed and total amounts
	// of an existing row.
	UpdateRow(id RowID, completed, total WorkAmount)

	// StartRow marks the row as visible/running.
	StartRow(id RowID)

	// StopRow finalizes the row but leaves it on display.
	StopRow(id RowID)

	// RemoveRow finalizes the row and removes it from display.
	RemoveRow(id RowID)
}
