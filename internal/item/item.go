package item

// Item is one unit of tracked work mirrored from the external store.
// Optional fields are nil when the record does not carry a usable value.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Level       *float64 `json:"level"`
	Upper       *string  `json:"upper"`
	Dependency  *string  `json:"dependency"`
	EarlyStart  *string  `json:"early_start"`
	LateStart   *string  `json:"late_start"`
	EarlyFinish *string  `json:"early_finish"`
	LateFinish  *string  `json:"late_finish"`
	Done        bool     `json:"done"`
}
